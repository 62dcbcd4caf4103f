package rest

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util/storage"
	"github.com/bwise1/outpost/util/values"
	"github.com/google/uuid"
)

// locationErrorStatus maps location repository errors to response categories.
func locationErrorStatus(err error) string {
	switch {
	case errors.Is(err, errLocationNotFound), errors.Is(err, errCommentParent):
		return values.NotFound
	case errors.Is(err, errUnknownCategory), errors.Is(err, errUnknownDanger):
		return values.BadRequestBody
	default:
		return values.Error
	}
}

func (api *API) NearbyLocationsHelper(ctx context.Context, params model.NearbyLocationsParams, viewer *uuid.UUID) (model.NearbyLocationsResponse, string, string, error) {
	locations, total, err := api.NearbyLocationsRepo(ctx, params, viewer)
	if err != nil {
		return model.NearbyLocationsResponse{}, values.Error, "Failed to get nearby locations", err
	}

	return model.NearbyLocationsResponse{
		Locations: locations,
		Total:     total,
		RadiusKm:  params.Radius,
		Center:    model.Center{Latitude: params.Latitude, Longitude: params.Longitude},
	}, values.Success, "Nearby locations retrieved successfully", nil
}

func (api *API) FeedHelper(ctx context.Context, params model.FeedParams, viewer *uuid.UUID) (model.FeedResponse, string, string, error) {
	locations, err := api.FeedRepo(ctx, params, viewer)
	if err != nil {
		return model.FeedResponse{}, values.Error, "Failed to get feed", err
	}

	hasMore := len(locations) > params.Limit
	if hasMore {
		locations = locations[:params.Limit]
	}

	return model.FeedResponse{Locations: locations, HasMore: hasMore}, values.Success, "Feed retrieved successfully", nil
}

func (api *API) SearchLocationsHelper(ctx context.Context, params model.SearchLocationsParams, viewer *uuid.UUID) (model.SearchLocationsResponse, string, string, error) {
	locations, err := api.SearchLocationsRepo(ctx, params, viewer)
	if err != nil {
		return model.SearchLocationsResponse{}, values.Error, "Failed to search locations", err
	}

	hasMore := len(locations) > params.Limit
	if hasMore {
		locations = locations[:params.Limit]
	}

	return model.SearchLocationsResponse{
		Locations:    locations,
		Query:        params.Query,
		TotalResults: len(locations),
		HasMore:      hasMore,
	}, values.Success, "Search completed successfully", nil
}

// UploadLocationImagesHelper attaches images to a location the caller
// submitted. Only premium users may upload.
func (api *API) UploadLocationImagesHelper(ctx context.Context, userID, locationID uuid.UUID, files []*multipart.FileHeader) (model.LocationImagesResponse, string, string, error) {
	user, err := api.GetUserByID(ctx, userID.String())
	if err != nil {
		return model.LocationImagesResponse{}, values.Error, "Failed to load user", err
	}
	if !user.IsPremium {
		return model.LocationImagesResponse{}, values.NotAllowed, "Image upload is a premium feature", errPremiumRequired
	}

	location, err := api.GetLocationRepo(ctx, locationID, nil, false)
	if err != nil && !errors.Is(err, errLocationNotFound) {
		return model.LocationImagesResponse{}, values.Error, "Failed to load location", err
	}
	if err != nil || location.SubmittedBy == nil || *location.SubmittedBy != userID {
		return model.LocationImagesResponse{}, values.NotFound, "Location not found or access denied", errLocationNotFound
	}

	if api.Deps.Cloudinary == nil {
		return model.LocationImagesResponse{}, values.Unprocessable, "Image uploads are not available", storage.ErrNotConfigured
	}

	urls := make([]string, 0, len(files))
	for _, h := range files {
		url, err := api.uploadFile(ctx, h, storage.LocationImageFolder)
		if errors.Is(err, storage.ErrNotConfigured) {
			return model.LocationImagesResponse{}, values.Unprocessable, "Image uploads are not available", err
		}
		if err != nil {
			return model.LocationImagesResponse{}, values.Error, "Failed to upload image", err
		}
		urls = append(urls, url)
	}

	images, err := api.AddLocationImagesRepo(ctx, locationID, userID, urls)
	if err != nil {
		return model.LocationImagesResponse{}, values.Error, "Failed to save images", err
	}
	return model.LocationImagesResponse{Images: images, TotalUploaded: len(images)}, values.Created, "Images uploaded successfully", nil
}

func (api *API) uploadFile(ctx context.Context, h *multipart.FileHeader, folder string) (string, error) {
	f, err := h.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return api.Deps.Cloudinary.UploadImage(ctx, f, folder)
}

func (api *API) GetLocationHelper(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (model.Location, string, string, error) {
	if err := api.IncrementViewsRepo(ctx, id); err != nil {
		return model.Location{}, locationErrorStatus(err), "Location not found", err
	}

	location, err := api.GetLocationRepo(ctx, id, viewer, true)
	if err != nil {
		return model.Location{}, locationErrorStatus(err), "Failed to get location", err
	}
	return location, values.Success, "Location retrieved successfully", nil
}

func (api *API) CreateLocationHelper(ctx context.Context, submitter uuid.UUID, req model.CreateLocationRequest) (model.Location, string, string, error) {
	id, err := api.CreateLocationRepo(ctx, submitter, req)
	if err != nil {
		return model.Location{}, locationErrorStatus(err), "Failed to submit location", err
	}

	location, err := api.GetLocationRepo(ctx, id, &submitter, false)
	if err != nil {
		return model.Location{}, values.Error, "Failed to load submitted location", err
	}
	return location, values.Created, "Location submitted for approval", nil
}

func (api *API) ToggleHelper(ctx context.Context, target toggleTarget, userID, locationID uuid.UUID) (model.ToggleResult, string, string, error) {
	result, err := api.ToggleRepo(ctx, target, userID, locationID)
	if err != nil {
		return model.ToggleResult{}, locationErrorStatus(err), "Failed to update " + target.table, err
	}

	message := "Removed from " + target.table
	if result.Active {
		message = "Added to " + target.table
	}
	return result, values.Success, message, nil
}

// nestComments keeps top-level comments and attaches their direct replies.
// Deeper replies are dropped.
func nestComments(all []model.Comment) []model.Comment {
	index := make(map[uuid.UUID]int)
	top := make([]model.Comment, 0, len(all))
	for _, c := range all {
		if c.ParentID == nil {
			index[c.ID] = len(top)
			top = append(top, c)
		}
	}
	for _, c := range all {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			top[i].Replies = append(top[i].Replies, c)
		}
	}
	return top
}

func (api *API) CommentsHelper(ctx context.Context, locationID uuid.UUID) ([]model.Comment, string, string, error) {
	if _, err := api.GetLocationRepo(ctx, locationID, nil, true); err != nil {
		return nil, locationErrorStatus(err), "Location not found", err
	}

	all, err := api.CommentsRepo(ctx, locationID)
	if err != nil {
		return nil, values.Error, "Failed to get comments", err
	}
	return nestComments(all), values.Success, "Comments retrieved successfully", nil
}

func (api *API) CreateCommentHelper(ctx context.Context, userID, locationID uuid.UUID, req model.CreateCommentRequest) (model.Comment, string, string, error) {
	comment, err := api.CreateCommentRepo(ctx, userID, locationID, req)
	if err != nil {
		return model.Comment{}, locationErrorStatus(err), "Failed to add comment", err
	}
	return comment, values.Created, "Comment added successfully", nil
}
