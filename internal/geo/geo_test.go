package geo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	center := Point{Lat: 40, Lng: -74}

	testCases := []struct {
		name     string
		from, to Point
		wantKm   float64
		delta    float64
	}{
		{"identity", center, center, 0, 1e-9},
		{"five km north", center, Point{Lat: 40.05, Lng: -74}, 5.56, 0.05},
		{"one degree north", center, Point{Lat: 41, Lng: -74}, 111.19, 0.1},
		{"london to paris", Point{Lat: 51.5074, Lng: -0.1278}, Point{Lat: 48.8566, Lng: 2.3522}, 343.5, 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.wantKm, Distance(tc.from, tc.to), tc.delta)
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	points := []Point{
		{Lat: 40, Lng: -74},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: 179.9},
		{Lat: -89.9, Lng: -179.9},
		{Lat: 0, Lng: 0},
	}
	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
			assert.GreaterOrEqual(t, Distance(a, b), 0.0)
		}
	}
}

func TestDistanceAntipodal(t *testing.T) {
	got := Distance(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 180})
	require.False(t, math.IsNaN(got))
	assert.InDelta(t, math.Pi*EarthRadiusKm, got, 1e-3)
}

func TestRadiusScenario(t *testing.T) {
	center := Point{Lat: 40, Lng: -74}
	candidates := map[string]Point{
		"near": {Lat: 40.05, Lng: -74},
		"far":  {Lat: 41, Lng: -74},
	}

	var inside []string
	for name, p := range candidates {
		if Distance(center, p) <= 10 {
			inside = append(inside, name)
		}
	}
	assert.Equal(t, []string{"near"}, inside)
}

func TestDistanceSQL(t *testing.T) {
	want := "(12742 * ATAN2(SQRT(LEAST(1, (POWER(SIN((RADIANS((l.latitude - $1)) / 2)), 2) + ((COS(RADIANS($1)) * COS(RADIANS(l.latitude))) * POWER(SIN((RADIANS((l.longitude - $2)) / 2)), 2))))), SQRT((1 - LEAST(1, (POWER(SIN((RADIANS((l.latitude - $1)) / 2)), 2) + ((COS(RADIANS($1)) * COS(RADIANS(l.latitude))) * POWER(SIN((RADIANS((l.longitude - $2)) / 2)), 2))))))))"
	assert.Equal(t, want, DistanceSQL("l.latitude", "l.longitude", "$1", "$2"))
}

func TestDistanceSQLMatchesDistance(t *testing.T) {
	expr := distanceExpr("l.latitude", "l.longitude", "$1", "$2")
	points := []Point{
		{Lat: 40, Lng: -74},
		{Lat: 40.05, Lng: -74},
		{Lat: 41, Lng: -74},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 48.8566, Lng: 2.3522},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 180},
		{Lat: 89.9, Lng: 179.9},
		{Lat: -89.9, Lng: -179.9},
	}
	for _, ref := range points {
		for _, row := range points {
			env := map[string]float64{"$1": ref.Lat, "$2": ref.Lng, "l.latitude": row.Lat, "l.longitude": row.Lng}
			got := expr.eval(env)
			require.False(t, math.IsNaN(got), "ref=%v row=%v", ref, row)
			assert.InDelta(t, Distance(ref, row), got, 1e-6, "ref=%v row=%v", ref, row)
		}
	}
}

func TestFeedSQL(t *testing.T) {
	assert.Equal(t, "CASE WHEN distance <= $5 THEN 0 ELSE 1 END", FeedRankSQL("distance", "$5"))
	assert.Equal(t,
		"feed_rank ASC, CASE WHEN feed_rank = 0 THEN distance END ASC, created_at DESC",
		FeedOrderSQL("feed_rank", "distance", "created_at"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Point{Lat: 90, Lng: -180}.Validate())
	assert.ErrorIs(t, Point{Lat: 90.01, Lng: 0}.Validate(), ErrInvalidLatitude)
	assert.ErrorIs(t, Point{Lat: 0, Lng: 180.5}.Validate(), ErrInvalidLongitude)
	assert.ErrorIs(t, Point{Lat: math.NaN(), Lng: 0}.Validate(), ErrInvalidLatitude)

	assert.NoError(t, ValidateRadius(500))
	assert.ErrorIs(t, ValidateRadius(0), ErrInvalidRadius)
	assert.ErrorIs(t, ValidateRadius(-3), ErrInvalidRadius)
	assert.ErrorIs(t, ValidateRadius(500.1), ErrInvalidRadius)
}

func TestClassifyActivity(t *testing.T) {
	testCases := []struct {
		minutes float64
		want    Activity
	}{
		{0, VeryActive},
		{30, VeryActive},
		{31, Active},
		{120, Active},
		{121, Recent},
		{60 * 24, Recent},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClassifyActivity(tc.minutes), "minutes=%v", tc.minutes)
	}
}

func TestMinutesSince(t *testing.T) {
	now := time.Date(2025, 4, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, 90.0, MinutesSince(now.Add(-90*time.Minute-20*time.Second), now))
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]ActivitySample{
		{MinutesSinceLogin: 5, IsPremium: true},
		{MinutesSinceLogin: 30},
		{MinutesSinceLogin: 45, IsPremium: true},
		{MinutesSinceLogin: 500},
	})

	assert.Equal(t, ActivityStats{TotalUsers: 4, VeryActive: 2, Active: 1, Recent: 1, PremiumUsers: 2}, stats)
	assert.Equal(t, stats.TotalUsers, stats.VeryActive+stats.Active+stats.Recent)
	assert.Equal(t, ActivityStats{}, Summarize(nil))
}

func TestSummarizeKeepsLongIdleUsers(t *testing.T) {
	stats := Summarize([]ActivitySample{
		{MinutesSinceLogin: 60 * 26},
		{MinutesSinceLogin: 60 * 24 * 30, IsPremium: true},
	})
	assert.Equal(t, ActivityStats{TotalUsers: 2, Recent: 2, PremiumUsers: 1}, stats)
}
