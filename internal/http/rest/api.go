package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/outpost/config"
	deps "github.com/bwise1/outpost/internal/debs"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/tracing"
	"github.com/bwise1/outpost/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

// ServerResponse is the envelope of every JSON response.
type ServerResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      interface{} `json:"error,omitempty"`
	StatusCode int         `json:"-"`
}

// fieldErrors carries field -> rule detail for inputs rejected before the
// validator runs.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	return fmt.Sprintf("invalid fields: %v", map[string]string(f))
}

// hideInternalErrors drops error strings from 5xx responses. Set from config.
var hideInternalErrors bool

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	resp := &ServerResponse{
		Status:     status,
		Message:    message,
		StatusCode: util.StatusCode(status),
	}

	var fe fieldErrors
	switch {
	case errors.As(err, &fe):
		resp.Error = map[string]string(fe)
	case util.FieldErrors(err) != nil:
		resp.Error = util.FieldErrors(err)
	case err != nil && (resp.StatusCode < http.StatusInternalServerError || !hideInternalErrors):
		resp.Error = err.Error()
	}

	event := log.Warn()
	if resp.StatusCode >= http.StatusInternalServerError {
		event = log.Error()
	}
	if tc != nil {
		event = event.Str("request_id", tc.RequestID).Str("request_source", tc.RequestSource)
	}
	event.Err(err).Str("status", status).Msg(message)

	return resp
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	resp := respondWithError(err, message, status, nil)
	respByte, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		http.Error(w, message, resp.StatusCode)
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

func writeJSONResponse(w http.ResponseWriter, body []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		Handler:      api.setUpServerHandler(),
	}
	log.Info().Int("port", api.Config.Port).Msg("server listening")

	err := api.Server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (api *API) setUpServerHandler() http.Handler {
	hideInternalErrors = api.Config.IsProduction()

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", values.HeaderRequestSource, values.HeaderRequestID},
		ExposedHeaders:   []string{values.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(RequestTracing)
	mux.Use(Instrument)

	mux.Method(http.MethodGet, "/health", Handler(api.Health))
	mux.Handle("/metrics", promhttp.Handler())

	mux.Group(func(r chi.Router) {
		r.Use(httprate.Limit(
			api.Config.RateLimitRequests,
			api.Config.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeErrorResponse(w, errors.New("rate limit exceeded"), values.TooManyRequest, "too many requests, please try again later")
			}),
		))

		r.Mount("/auth", api.AuthRoutes())
		r.Mount("/users", api.UserRoutes())
		r.Mount("/locations", api.LocationRoutes())
		r.Mount("/groups", api.GroupRoutes())
	})

	mux.With(api.RequireLogin).Get("/ws", api.ServeWebsocket)

	return mux
}

func (api *API) Health(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	if err := api.Deps.DB.Ping(r.Context()); err != nil {
		return respondWithError(err, "database unavailable", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "ok",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data: map[string]interface{}{
			"environment": api.Config.Environment,
			"timestamp":   time.Now().UTC(),
		},
	}
}

// ServeWebsocket upgrades the request and hands the connection to the hub.
func (api *API) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		writeErrorResponse(w, err, values.NotAuthorised, "not-authorized")
		return
	}
	api.Deps.WebSocket.HandleConnections(w, r, userID)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownPeriod)
	defer cancel()
	return api.Server.Shutdown(ctx)
}
