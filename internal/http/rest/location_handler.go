package rest

import (
	"net/http"
	"strings"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/tracing"
	"github.com/bwise1/outpost/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (api *API) LocationRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.OptionalLogin)
		r.Method(http.MethodGet, "/nearby", Handler(api.NearbyLocations))
		r.Method(http.MethodGet, "/feed", Handler(api.Feed))
		r.Method(http.MethodGet, "/random", Handler(api.RandomLocations))
		r.Method(http.MethodGet, "/search", Handler(api.SearchLocations))
		r.Method(http.MethodGet, "/{locationID}", Handler(api.GetLocation))
		r.Method(http.MethodGet, "/{locationID}/comments", Handler(api.ListComments))
	})

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.CreateLocation))
		r.Method(http.MethodPost, "/{locationID}/images", Handler(api.UploadLocationImages))
		r.Method(http.MethodPost, "/{locationID}/like", Handler(api.ToggleLike))
		r.Method(http.MethodPost, "/{locationID}/bookmark", Handler(api.ToggleBookmark))
		r.Method(http.MethodPost, "/{locationID}/comments", Handler(api.CreateComment))
	})

	return mux
}

func locationIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "locationID"))
	if err != nil {
		return uuid.Nil, fieldErrors{"locationID": "uuid"}
	}
	return id, nil
}

func (api *API) NearbyLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.NearbyLocationsParams{Radius: geo.DefaultRadiusKm, Limit: 50}
	if err := decodeQuery(r, &params, "lat", "lng"); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.NearbyLocationsHelper(r.Context(), params, util.OptionalUserID(r.Context()))
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

func (api *API) Feed(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.FeedParams{Limit: 20, PriorityRadius: api.Config.PriorityRadiusKm}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return respondWithError(fieldErrors{"lat": "required_with=lng", "lng": "required_with=lat"}, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.FeedHelper(r.Context(), params, util.OptionalUserID(r.Context()))
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

func (api *API) SearchLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.SearchLocationsParams{Radius: geo.DefaultRadiusKm, Limit: 20}
	if err := decodeQuery(r, &params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return respondWithError(fieldErrors{"lat": "required_with=lng", "lng": "required_with=lat"}, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	resp, status, message, err := api.SearchLocationsHelper(r.Context(), params, util.OptionalUserID(r.Context()))
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

func (api *API) RandomLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.RandomLocationsParams{Radius: geo.DefaultRadiusKm, Limit: 10}
	if err := decodeQuery(r, &params, "lat", "lng"); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(params); err != nil {
		return respondWithError(err, "invalid query parameters", values.BadRequestBody, &tc)
	}

	locations, err := api.RandomLocationsRepo(r.Context(), params, util.OptionalUserID(r.Context()))
	if err != nil {
		return respondWithError(err, "Failed to get random locations", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Random locations retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       locations,
	}
}

func (api *API) GetLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := locationIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid location id", values.BadRequestBody, &tc)
	}

	location, status, message, err := api.GetLocationHelper(r.Context(), id, util.OptionalUserID(r.Context()))
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       location,
	}
}

func (api *API) CreateLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req model.CreateLocationRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}

	location, status, message, err := api.CreateLocationHelper(r.Context(), userID, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       location,
	}
}

const maxLocationImages = 5

func (api *API) UploadLocationImages(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	locationID, err := locationIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid location id", values.BadRequestBody, &tc)
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return respondWithError(err, "invalid multipart form", values.BadRequestBody, &tc)
	}
	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		return respondWithError(fieldErrors{"images": "required"}, "no images provided", values.BadRequestBody, &tc)
	}
	if len(headers) > maxLocationImages {
		return respondWithError(fieldErrors{"images": "max=5"}, "too many images", values.BadRequestBody, &tc)
	}
	for _, h := range headers {
		if h.Size > maxImageBytes {
			return respondWithError(fieldErrors{"images": "max=10MB"}, "image is too large", values.BadRequestBody, &tc)
		}
		if ct := h.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			return respondWithError(fieldErrors{"images": "image"}, "only image uploads are allowed", values.BadRequestBody, &tc)
		}
	}

	resp, status, message, err := api.UploadLocationImagesHelper(r.Context(), userID, locationID, headers)
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

func (api *API) ToggleLike(w http.ResponseWriter, r *http.Request) *ServerResponse {
	return api.toggle(r, likeToggle)
}

func (api *API) ToggleBookmark(w http.ResponseWriter, r *http.Request) *ServerResponse {
	return api.toggle(r, bookmarkToggle)
}

func (api *API) toggle(r *http.Request, target toggleTarget) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	locationID, err := locationIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid location id", values.BadRequestBody, &tc)
	}

	result, status, message, err := api.ToggleHelper(r.Context(), target, userID, locationID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       result,
	}
}

func (api *API) ListComments(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	locationID, err := locationIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid location id", values.BadRequestBody, &tc)
	}

	comments, status, message, err := api.CommentsHelper(r.Context(), locationID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       comments,
	}
}

func (api *API) CreateComment(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	locationID, err := locationIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid location id", values.BadRequestBody, &tc)
	}

	var req model.CreateCommentRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed", values.BadRequestBody, &tc)
	}
	if !util.NotBlank(req.Content) {
		return respondWithError(fieldErrors{"content": "required"}, "validation failed", values.BadRequestBody, &tc)
	}

	comment, status, message, err := api.CreateCommentHelper(r.Context(), userID, locationID, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       comment,
	}
}
