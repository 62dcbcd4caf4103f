package rest

import (
	"context"
	"errors"
	"time"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util/values"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// queueLabel asks the background labeler to name a position the client left
// unlabeled.
func (api *API) queueLabel(userID uuid.UUID, pos model.UserPosition) {
	if pos.LocationName != nil && *pos.LocationName != "" {
		return
	}
	if api.Deps == nil || api.Deps.Labeler == nil {
		return
	}
	if !api.Deps.Labeler.Enqueue(userID, geo.Point{Lat: pos.Latitude, Lng: pos.Longitude}) {
		log.Debug().Str("user_id", userID.String()).Msg("label queue full, position stays unlabeled")
	}
}

func (api *API) UpdatePositionHelper(ctx context.Context, userID uuid.UUID, req model.UpdatePositionRequest) (model.UserPosition, string, string, error) {
	position, err := api.UpsertPosition(ctx, userID, req)
	if err != nil {
		return model.UserPosition{}, values.Error, "Failed to update location", err
	}
	api.queueLabel(userID, position)

	if api.Deps.WebSocket != nil {
		api.Deps.WebSocket.BroadcastNearby(position, geo.Point{Lat: position.Latitude, Lng: position.Longitude}, geo.DefaultRadiusKm, userID)
	}

	return position, values.Success, "Location updated successfully", nil
}

func (api *API) ActiveNearbyHelper(ctx context.Context, userID uuid.UUID, params model.ActiveNearbyParams) (model.ActiveNearbyResponse, string, string, error) {
	users, err := api.ActiveNearbyRepo(ctx, userID, params)
	if err != nil {
		return model.ActiveNearbyResponse{}, values.Error, "Failed to get nearby active users", err
	}

	now := time.Now()
	for i := range users {
		users[i].MinutesSinceLogin = geo.MinutesSince(users[i].LastLogin, now)
		users[i].ActivityStatus = string(geo.ClassifyActivity(users[i].MinutesSinceLogin))
	}

	return model.ActiveNearbyResponse{
		Users:      users,
		TotalCount: len(users),
		Query:      params,
	}, values.Success, "Nearby active users retrieved successfully", nil
}

func (api *API) ActiveStatsHelper(ctx context.Context, params model.ActiveStatsParams) (model.ActiveStatsResponse, string, string, error) {
	samples, err := api.ActivitySamplesRepo(ctx, params, time.Now())
	if err != nil {
		return model.ActiveStatsResponse{}, values.Error, "Failed to get activity statistics", err
	}

	return model.ActiveStatsResponse{
		Statistics: geo.Summarize(samples),
		Query:      params,
	}, values.Success, "Activity statistics retrieved successfully", nil
}

func (api *API) BookmarksHelper(ctx context.Context, userID uuid.UUID, params model.PageParams) (model.BookmarksResponse, string, string, error) {
	locations, err := api.BookmarksRepo(ctx, userID, params)
	if err != nil {
		return model.BookmarksResponse{}, values.Error, "Failed to get bookmarks", err
	}

	hasMore := len(locations) > params.Limit
	if hasMore {
		locations = locations[:params.Limit]
	}
	return model.BookmarksResponse{Bookmarks: locations, HasMore: hasMore}, values.Success, "Bookmarks retrieved successfully", nil
}

func (api *API) SubmissionsHelper(ctx context.Context, userID uuid.UUID, params model.SubmissionsParams) (model.SubmissionsResponse, string, string, error) {
	locations, err := api.SubmissionsRepo(ctx, userID, params)
	if err != nil {
		return model.SubmissionsResponse{}, values.Error, "Failed to get submissions", err
	}

	hasMore := len(locations) > params.Limit
	if hasMore {
		locations = locations[:params.Limit]
	}
	return model.SubmissionsResponse{Submissions: locations, HasMore: hasMore}, values.Success, "Submissions retrieved successfully", nil
}

func (api *API) UpdateProfileHelper(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (model.User, string, string, error) {
	if req.Username != nil {
		taken, err := api.UsernameTakenByOther(ctx, *req.Username, userID)
		if err != nil {
			return model.User{}, values.Error, "Failed to update profile", err
		}
		if taken {
			return model.User{}, values.Conflict, "Username already taken", errUsernameTaken
		}
	}

	user, err := api.UpdateProfileRepo(ctx, userID, req)
	if errors.Is(err, errUsernameTaken) {
		return model.User{}, values.Conflict, "Username already taken", err
	}
	if err != nil {
		return model.User{}, values.Error, "Failed to update profile", err
	}
	return user, values.Success, "Profile updated successfully", nil
}

func (api *API) MarkNotificationReadHelper(ctx context.Context, userID, notificationID uuid.UUID) (string, string, error) {
	err := api.MarkNotificationReadRepo(ctx, userID, notificationID)
	if errors.Is(err, errNotificationNotFound) {
		return values.NotFound, "Notification not found", err
	}
	if err != nil {
		return values.Error, "Failed to update notification", err
	}
	return values.Success, "Notification marked as read", nil
}
