package rest

import (
	"net/http"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/tracing"
	"github.com/bwise1/outpost/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (api *API) UserRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/profile", Handler(api.GetProfile))
		r.Method(http.MethodPut, "/profile", Handler(api.UpdateProfile))
		r.Method(http.MethodGet, "/bookmarks", Handler(api.ListBookmarks))
		r.Method(http.MethodGet, "/submissions", Handler(api.ListSubmissions))
		r.Method(http.MethodPost, "/location", Handler(api.UpdatePosition))
		r.Method(http.MethodGet, "/active-nearby", Handler(api.ActiveNearby))
		r.Method(http.MethodGet, "/active-stats", Handler(api.ActiveStats))
		r.Method(http.MethodGet, "/notifications", Handler(api.ListNotifications))
		r.Method(http.MethodPut, "/notifications/read", Handler(api.MarkNotificationsRead))
		r.Method(http.MethodPut, "/notifications/{notificationID}/read", Handler(api.MarkNotificationRead))
	})

	return mux
}

func (api *API) GetProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	user, err := api.GetUserByID(r.Context(), userID.String())
	if err != nil {
		return respondWithError(err, "failed to get user profile", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "User profile retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       user,
	}
}

func (api *API) UpdatePosition(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req model.UpdatePositionRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	position, status, message, err := api.UpdatePositionHelper(r.Context(), userID, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       position,
	}
}

func (api *API) ActiveNearby(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	params := model.ActiveNearbyParams{Radius: geo.DefaultRadiusKm, ActivityThreshold: 2}
	if err := decodeQuery(r, &params, "latitude", "longitude"); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.ActiveNearbyHelper(r.Context(), userID, params)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       resp,
	}
}

func (api *API) ActiveStats(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.ActiveStatsParams{Radius: geo.DefaultRadiusKm}
	if err := decodeQuery(r, &params, "latitude", "longitude"); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.ActiveStatsHelper(r.Context(), params)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       resp,
	}
}

type notificationParams struct {
	Limit      int  `schema:"limit" validate:"gte=1,lte=100"`
	UnreadOnly bool `schema:"unread_only"`
}

func (api *API) ListNotifications(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	params := notificationParams{Limit: 50}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	notifications, err := api.ListNotificationsRepo(r.Context(), userID, params.Limit, params.UnreadOnly)
	if err != nil {
		return respondWithError(err, "failed to get notifications", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Notifications retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       notifications,
	}
}

func (api *API) MarkNotificationsRead(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	updated, err := api.MarkNotificationsReadRepo(r.Context(), userID)
	if err != nil {
		return respondWithError(err, "failed to update notifications", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Notifications marked as read",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       map[string]int64{"updated": updated},
	}
}

func (api *API) MarkNotificationRead(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		return respondWithError(fieldErrors{"notificationID": "uuid"}, "invalid notification id", values.BadRequestBody, &tc)
	}

	status, message, err := api.MarkNotificationReadHelper(r.Context(), userID, notificationID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

func (api *API) UpdateProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req model.UpdateProfileRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if req.Empty() {
		return respondWithError(fieldErrors{"body": "required"}, "no fields to update", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	user, status, message, err := api.UpdateProfileHelper(r.Context(), userID, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       user,
	}
}

func (api *API) ListBookmarks(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	params := model.PageParams{Limit: 20}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.BookmarksHelper(r.Context(), userID, params)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       resp,
	}
}

func (api *API) ListSubmissions(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	params := model.SubmissionsParams{Status: "all", Limit: 20}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.SubmissionsHelper(r.Context(), userID, params)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       resp,
	}
}
