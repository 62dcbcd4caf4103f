// Package geo holds the distance, ranking and activity rules shared by the
// location and user queries.
package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	EarthRadiusKm = 6371.0

	MaxRadiusKm     = 500.0
	DefaultRadiusKm = 50.0
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidRadius    = fmt.Errorf("radius must be greater than 0 and at most %.0f km", MaxRadiusKm)
)

// Point is a coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func ValidateRadius(km float64) error {
	if math.IsNaN(km) || km <= 0 || km > MaxRadiusKm {
		return ErrInvalidRadius
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(h, 1)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceSQL renders the same formula as Distance for Postgres. latCol and
// lngCol are column expressions, latArg and lngArg are placeholders such as $1.
func DistanceSQL(latCol, lngCol, latArg, lngArg string) string {
	return distanceExpr(latCol, lngCol, latArg, lngArg).sql()
}

func distanceExpr(latCol, lngCol, latArg, lngArg string) sqlExpr {
	lat1, lng1, lat2, lng2 := ref(latArg), ref(lngArg), ref(latCol), ref(lngCol)
	halfChord := func(delta sqlExpr) sqlExpr {
		return fn("POWER", fn("SIN", div(fn("RADIANS", delta), num(2))), num(2))
	}
	h := fn("LEAST", num(1), add(
		halfChord(sub(lat2, lat1)),
		mul(mul(fn("COS", fn("RADIANS", lat1)), fn("COS", fn("RADIANS", lat2))), halfChord(sub(lng2, lng1))),
	))
	return mul(num(2*EarthRadiusKm), fn("ATAN2", fn("SQRT", h), fn("SQRT", sub(num(1), h))))
}

// Activity labels derived from minutes since last login.
type Activity string

const (
	VeryActive Activity = "very_active"
	Active     Activity = "active"
	Recent     Activity = "recent"
)

const (
	VeryActiveMinutes = 30
	ActiveMinutes     = 120
)

func ClassifyActivity(minutesSinceLogin float64) Activity {
	switch {
	case minutesSinceLogin <= VeryActiveMinutes:
		return VeryActive
	case minutesSinceLogin <= ActiveMinutes:
		return Active
	default:
		return Recent
	}
}

// MinutesSince returns whole minutes elapsed between t and now.
func MinutesSince(t, now time.Time) float64 {
	return math.Floor(now.Sub(t).Minutes())
}

// ActivitySample is one user row feeding the radius statistics.
type ActivitySample struct {
	MinutesSinceLogin float64
	IsPremium         bool
}

type ActivityStats struct {
	TotalUsers   int `json:"total_users"`
	VeryActive   int `json:"very_active"`
	Active       int `json:"active"`
	Recent       int `json:"recent"`
	PremiumUsers int `json:"premium_users"`
}

// Summarize buckets samples with ClassifyActivity. The three activity buckets
// are disjoint and always add up to TotalUsers.
func Summarize(samples []ActivitySample) ActivityStats {
	var stats ActivityStats
	for _, s := range samples {
		stats.TotalUsers++
		switch ClassifyActivity(s.MinutesSinceLogin) {
		case VeryActive:
			stats.VeryActive++
		case Active:
			stats.Active++
		default:
			stats.Recent++
		}
		if s.IsPremium {
			stats.PremiumUsers++
		}
	}
	return stats
}

// Feed ranks. Items inside the priority radius always sort first.
const (
	RankNearby = 0
	RankOther  = 1
)

// FeedRankSQL ranks a row RankNearby when distance is within radiusArg.
func FeedRankSQL(distance, radiusArg string) string {
	return fmt.Sprintf("CASE WHEN %s <= %s THEN %d ELSE %d END", distance, radiusArg, RankNearby, RankOther)
}

// FeedOrderSQL orders a ranked feed by rank, then distance ascending for
// nearby rows and recency for everything else.
func FeedOrderSQL(rank, distance, createdAt string) string {
	return fmt.Sprintf("%[1]s ASC, CASE WHEN %[1]s = %[4]d THEN %[2]s END ASC, %[3]s DESC", rank, distance, createdAt, RankNearby)
}
