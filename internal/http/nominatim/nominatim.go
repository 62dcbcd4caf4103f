package nominatim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "outpost-api/1.0"
	reverseEndpoint  = "/reverse"
	maxBodyBytes     = 1 << 20
)

// ErrNoResult is returned when the service has no address for the point.
var ErrNoResult = errors.New("nominatim: no result")

// Client performs reverse geocoding against a Nominatim instance.
type Client struct {
	BaseURL    *url.URL
	UserAgent  string
	HTTPClient *http.Client

	breaker *gobreaker.CircuitBreaker[*Place]
	limiter *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithRateLimit replaces the default of one request per second, the
// public Nominatim usage policy.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// ReverseQuery is encoded into the /reverse query string.
type ReverseQuery struct {
	Lat            float64 `url:"lat"`
	Lon            float64 `url:"lon"`
	Format         string  `url:"format"`
	Zoom           int     `url:"zoom,omitempty"`
	AddressDetails int     `url:"addressdetails"`
}

// Place is the subset of the /reverse response the API uses.
type Place struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

type Address struct {
	Road        string `json:"road,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	City        string `json:"city,omitempty"`
	Town        string `json:"town,omitempty"`
	Village     string `json:"village,omitempty"`
	County      string `json:"county,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// Label returns a short "locality, state" style label, falling back to the
// full display name.
func (p *Place) Label() string {
	a := p.Address
	locality := firstNonEmpty(a.City, a.Town, a.Village, a.Suburb, a.County)
	region := firstNonEmpty(a.State, a.Country)

	switch {
	case locality != "" && region != "":
		return locality + ", " + region
	case locality != "":
		return locality
	case region != "":
		return region
	}
	return strings.TrimSpace(p.DisplayName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewClient builds a client. An empty baseURL or userAgent uses the defaults.
func NewClient(baseURL, userAgent string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse nominatim base url")
	}

	c := &Client{
		BaseURL:   u,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*Place](gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResult)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("geocoder circuit state changed")
		},
	})
	return c, nil
}

func (c *Client) buildURL(endpoint string, queryParams interface{}) (string, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	u := c.BaseURL.ResolveReference(rel)

	v, err := query.Values(queryParams)
	if err != nil {
		return "", errors.Wrap(err, "encode query parameters")
	}
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// Reverse looks up the place at p. Calls wait for the rate limiter and fail
// fast while the breaker is open.
func (c *Client) Reverse(ctx context.Context, p geo.Point) (*Place, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.GeocoderRequestsTotal.WithLabelValues("throttled").Inc()
		return nil, errors.Wrap(err, "wait for geocoder rate limit")
	}

	place, err := c.breaker.Execute(func() (*Place, error) {
		return c.reverse(ctx, p)
	})

	switch {
	case err == nil:
		metrics.GeocoderRequestsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, ErrNoResult):
		metrics.GeocoderRequestsTotal.WithLabelValues("empty").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GeocoderRequestsTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.GeocoderRequestsTotal.WithLabelValues("error").Inc()
	}
	return place, err
}

// Label is Reverse reduced to a display label.
func (c *Client) Label(ctx context.Context, p geo.Point) (string, error) {
	place, err := c.Reverse(ctx, p)
	if err != nil {
		return "", err
	}
	return place.Label(), nil
}

func (c *Client) reverse(ctx context.Context, p geo.Point) (*Place, error) {
	reqURL, err := c.buildURL(reverseEndpoint, ReverseQuery{
		Lat:            p.Lat,
		Lon:            p.Lng,
		Format:         "jsonv2",
		Zoom:           14,
		AddressDetails: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build reverse URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create reverse request")
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute reverse request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read reverse response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var place Place
	if err := json.Unmarshal(body, &place); err != nil {
		return nil, errors.Wrap(err, "decode reverse response")
	}
	if place.Error != "" || (place.DisplayName == "" && place.Address == (Address{})) {
		return nil, ErrNoResult
	}
	return &place, nil
}
