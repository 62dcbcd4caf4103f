package nominatim

import (
	"context"
	"time"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLabelQueue = 256
	labelTimeout      = 10 * time.Second
)

// Geocoder resolves a point to a display label.
type Geocoder interface {
	Label(ctx context.Context, p geo.Point) (string, error)
}

// LabelWriter stores label for the position userID had at p.
type LabelWriter func(ctx context.Context, userID uuid.UUID, p geo.Point, label string) error

type labelJob struct {
	userID uuid.UUID
	point  geo.Point
}

// Labeler resolves position labels on a single background worker so request
// handlers never wait on the geocoder.
type Labeler struct {
	geocoder Geocoder
	write    LabelWriter
	jobs     chan labelJob
}

func NewLabeler(geocoder Geocoder, write LabelWriter, queueSize int) *Labeler {
	if queueSize <= 0 {
		queueSize = DefaultLabelQueue
	}
	return &Labeler{
		geocoder: geocoder,
		write:    write,
		jobs:     make(chan labelJob, queueSize),
	}
}

// Enqueue schedules a lookup. It never blocks and reports false when the
// labeler is nil or its queue is full.
func (l *Labeler) Enqueue(userID uuid.UUID, p geo.Point) bool {
	if l == nil {
		return false
	}
	select {
	case l.jobs <- labelJob{userID: userID, point: p}:
		return true
	default:
		metrics.GeocoderRequestsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Run works the queue until ctx is done.
func (l *Labeler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-l.jobs:
			l.resolve(ctx, job)
		}
	}
}

func (l *Labeler) resolve(ctx context.Context, job labelJob) {
	ctx, cancel := context.WithTimeout(ctx, labelTimeout)
	defer cancel()

	label, err := l.geocoder.Label(ctx, job.point)
	if err != nil || label == "" {
		log.Debug().Err(err).Str("user_id", job.userID.String()).Msg("reverse geocoding skipped")
		return
	}
	if err := l.write(ctx, job.userID, job.point, label); err != nil {
		log.Warn().Err(err).Str("user_id", job.userID.String()).Msg("failed to store position label")
	}
}
