package rest

import (
	"context"
	"errors"
	"io"

	"github.com/bwise1/outpost/internal/group"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/storage"
	"github.com/bwise1/outpost/util/values"
	"github.com/google/uuid"
)

// groupErrorStatus maps group service errors to response categories.
// Anything unrecognised is an infrastructure failure.
func groupErrorStatus(err error) string {
	switch {
	case errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, group.ErrInvalidInviteCode),
		errors.Is(err, group.ErrUserNotFound),
		errors.Is(err, group.ErrLocationNotFound),
		errors.Is(err, group.ErrReplyNotFound),
		errors.Is(err, group.ErrMessageNotFound):
		return values.NotFound

	case errors.Is(err, group.ErrBanned),
		errors.Is(err, group.ErrForbidden),
		errors.Is(err, group.ErrNotMember):
		return values.NotAllowed

	case errors.Is(err, group.ErrAlreadyMember),
		errors.Is(err, group.ErrGroupFull),
		errors.Is(err, group.ErrOwnerCannotLeave),
		errors.Is(err, group.ErrTargetNotMember),
		errors.Is(err, group.ErrSelfAction),
		errors.Is(err, group.ErrAlreadyBanned),
		errors.Is(err, group.ErrNotBanned),
		errors.Is(err, group.ErrInvalidRole),
		errors.Is(err, group.ErrRoleUnchanged),
		errors.Is(err, group.ErrAlreadyShared),
		errors.Is(err, group.ErrEmptyContent),
		errors.Is(err, group.ErrInvalidMessageType):
		return values.Failed

	default:
		return values.Error
	}
}

// groupFailure picks the message shown for err, preferring the domain reason.
func groupFailure(err error, fallback string) (string, string) {
	status := groupErrorStatus(err)
	if status == values.Error {
		return status, fallback
	}
	return status, err.Error()
}

func (api *API) CreateGroupHelper(ctx context.Context, userID uuid.UUID, req model.CreateGroupRequest) (model.Group, string, string, error) {
	g, err := api.Deps.Groups.Create(ctx, userID, req)
	if err != nil {
		status, message := groupFailure(err, "Failed to create group")
		return model.Group{}, status, message, err
	}
	return g, values.Created, "Group created successfully", nil
}

func (api *API) JoinGroupHelper(ctx context.Context, userID uuid.UUID, code string) (model.Group, string, string, error) {
	g, err := api.Deps.Groups.JoinByCode(ctx, userID, code)
	if err != nil {
		status, message := groupFailure(err, "Failed to join group")
		return model.Group{}, status, message, err
	}
	return g, values.Success, "Joined group successfully", nil
}

func (api *API) LeaveGroupHelper(ctx context.Context, groupID, userID uuid.UUID) (group.LeaveResult, string, string, error) {
	res, err := api.Deps.Groups.Leave(ctx, groupID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to leave group")
		return group.LeaveResult{}, status, message, err
	}
	if res.GroupDeleted {
		return res, values.Success, "Left group, the group was deleted", nil
	}
	return res, values.Success, "Left group successfully", nil
}

// SharedLocationsHelper returns the shares and the polyline through them in
// share order.
func (api *API) SharedLocationsHelper(ctx context.Context, groupID, userID uuid.UUID) (model.GroupLocationsResponse, string, string, error) {
	locations, err := api.Deps.Groups.SharedLocations(ctx, groupID, userID)
	if err != nil {
		status, message := groupFailure(err, "Failed to get shared locations")
		return model.GroupLocationsResponse{}, status, message, err
	}

	coords := make([][]float64, 0, len(locations))
	for _, l := range locations {
		coords = append(coords, []float64{l.Latitude, l.Longitude})
	}

	return model.GroupLocationsResponse{
		Locations: locations,
		Path:      util.EncodePath(coords),
	}, values.Success, "Shared locations retrieved successfully", nil
}

// SendImageHelper uploads the image and posts it to the group as an image
// message. Membership is checked before anything is uploaded.
func (api *API) SendImageHelper(ctx context.Context, groupID, userID uuid.UUID, file io.Reader, replyTo *uuid.UUID) (model.GroupMessage, string, string, error) {
	if err := api.Deps.Groups.CheckMember(ctx, groupID, userID); err != nil {
		status, message := groupFailure(err, "Failed to send image")
		return model.GroupMessage{}, status, message, err
	}

	url, err := api.Deps.Cloudinary.UploadImage(ctx, file, storage.GroupImageFolder)
	if errors.Is(err, storage.ErrNotConfigured) {
		return model.GroupMessage{}, values.Unprocessable, "Image uploads are not available", err
	}
	if err != nil {
		return model.GroupMessage{}, values.Error, "Failed to upload image", err
	}

	msg, err := api.Deps.Groups.SendMessage(ctx, groupID, userID, model.SendMessageRequest{
		MessageType: model.MessageImage,
		Content:     url,
		ReplyToID:   replyTo,
	})
	if err != nil {
		status, message := groupFailure(err, "Failed to send image")
		return model.GroupMessage{}, status, message, err
	}
	return msg, values.Created, "Image sent successfully", nil
}
