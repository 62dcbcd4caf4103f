package nominatim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stored struct {
	userID uuid.UUID
	point  geo.Point
	label  string
}

func recordLabels(out chan<- stored) LabelWriter {
	return func(_ context.Context, userID uuid.UUID, p geo.Point, label string) error {
		out <- stored{userID: userID, point: p, label: label}
		return nil
	}
}

type geocoderFunc func(ctx context.Context, p geo.Point) (string, error)

func (f geocoderFunc) Label(ctx context.Context, p geo.Point) (string, error) { return f(ctx, p) }

func TestLabelerResolvesInBackground(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address":{"town":"Kyrenia","country":"Cyprus"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", WithRateLimit(rate.Inf, 1))
	require.NoError(t, err)

	out := make(chan stored, 1)
	l := NewLabeler(c, recordLabels(out), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	userID := uuid.New()
	p := geo.Point{Lat: 35.33, Lng: 33.32}
	require.True(t, l.Enqueue(userID, p))

	select {
	case got := <-out:
		assert.Equal(t, stored{userID: userID, point: p, label: "Kyrenia, Cyprus"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("label was not stored")
	}
}

func TestLabelerEnqueueNeverBlocks(t *testing.T) {
	// No worker is running, so the second job finds the queue full.
	l := NewLabeler(geocoderFunc(func(context.Context, geo.Point) (string, error) {
		return "", errors.New("unavailable")
	}), recordLabels(make(chan stored, 1)), 1)

	done := make(chan []bool, 1)
	go func() {
		done <- []bool{l.Enqueue(uuid.New(), geo.Point{}), l.Enqueue(uuid.New(), geo.Point{})}
	}()
	select {
	case got := <-done:
		assert.Equal(t, []bool{true, false}, got)
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked")
	}

	var nilLabeler *Labeler
	assert.False(t, nilLabeler.Enqueue(uuid.New(), geo.Point{}))
}

func TestLabelerSkipsFailedLookups(t *testing.T) {
	out := make(chan stored, 1)
	l := NewLabeler(geocoderFunc(func(context.Context, geo.Point) (string, error) {
		return "", ErrNoResult
	}), recordLabels(out), 1)

	l.resolve(context.Background(), labelJob{userID: uuid.New()})
	assert.Empty(t, out)
}
