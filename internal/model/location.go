package model

import (
	"time"

	"github.com/google/uuid"
)

type Location struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Address        string     `json:"address"`
	Category       string     `json:"category"`
	CategoryIcon   *string    `json:"category_icon,omitempty"`
	DangerLevel    string     `json:"danger_level"`
	DangerColor    *string    `json:"danger_color,omitempty"`
	SubmittedBy    *uuid.UUID `json:"submitted_by,omitempty"`
	SubmitterName  *string    `json:"submitted_by_username,omitempty"`
	IsApproved     bool       `json:"is_approved"`
	LikesCount     int        `json:"likes_count"`
	BookmarksCount int        `json:"bookmarks_count"`
	CommentsCount  int        `json:"comments_count"`
	ViewsCount     int        `json:"views_count"`
	CreatedAt      time.Time  `json:"created_at"`
	Distance       *float64   `json:"distance_km,omitempty"`
	IsLiked        bool       `json:"is_liked"`
	IsBookmarked   bool       `json:"is_bookmarked"`
	Images         []string   `json:"images"`
	Tags           []string   `json:"tags"`
}

type CreateLocationRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=255"`
	Description string   `json:"description" validate:"max=5000"`
	Latitude    float64  `json:"latitude" validate:"latitude"`
	Longitude   float64  `json:"longitude" validate:"longitude"`
	Address     string   `json:"address" validate:"max=500"`
	Category    string   `json:"category" validate:"required,max=50"`
	DangerLevel string   `json:"danger_level" validate:"required,max=30"`
	Tags        []string `json:"tags" validate:"max=10,dive,required,max=50"`
}

type NearbyLocationsParams struct {
	Latitude  float64 `schema:"lat" validate:"latitude"`
	Longitude float64 `schema:"lng" validate:"longitude"`
	Radius    float64 `schema:"radius" validate:"gt=0,lte=500"`
	Limit     int     `schema:"limit" validate:"gte=1,lte=100"`
	Offset    int     `schema:"offset" validate:"gte=0"`
	Category  string  `schema:"category" validate:"max=50"`
}

type FeedParams struct {
	Limit          int      `schema:"limit" validate:"gte=1,lte=50"`
	Offset         int      `schema:"offset" validate:"gte=0"`
	Category       string   `schema:"category" validate:"max=50"`
	Latitude       *float64 `schema:"lat" validate:"omitempty,latitude"`
	Longitude      *float64 `schema:"lng" validate:"omitempty,longitude"`
	PriorityRadius float64  `schema:"priority_radius" validate:"gt=0,lte=500"`
}

type SearchLocationsParams struct {
	Query     string   `schema:"q" validate:"max=100"`
	Latitude  *float64 `schema:"lat" validate:"omitempty,latitude"`
	Longitude *float64 `schema:"lng" validate:"omitempty,longitude"`
	Radius    float64  `schema:"radius" validate:"gt=0,lte=500"`
	Category  string   `schema:"category" validate:"max=50"`
	Limit     int      `schema:"limit" validate:"gte=1,lte=50"`
	Offset    int      `schema:"offset" validate:"gte=0"`
}

type SearchLocationsResponse struct {
	Locations    []Location `json:"locations"`
	Query        string     `json:"query"`
	TotalResults int        `json:"total_results"`
	HasMore      bool       `json:"has_more"`
}

type LocationImage struct {
	ID         uuid.UUID `json:"id"`
	LocationID uuid.UUID `json:"location_id"`
	ImageURL   string    `json:"image_url"`
	ImageOrder int       `json:"image_order"`
	CreatedAt  time.Time `json:"created_at"`
}

type LocationImagesResponse struct {
	Images        []LocationImage `json:"images"`
	TotalUploaded int             `json:"total_uploaded"`
}

type RandomLocationsParams struct {
	Latitude  float64 `schema:"lat" validate:"latitude"`
	Longitude float64 `schema:"lng" validate:"longitude"`
	Radius    float64 `schema:"radius" validate:"gt=0,lte=500"`
	Limit     int     `schema:"limit" validate:"gte=1,lte=50"`
}

type Center struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type NearbyLocationsResponse struct {
	Locations []Location `json:"locations"`
	Total     int        `json:"total"`
	RadiusKm  float64    `json:"radius_km"`
	Center    Center     `json:"center"`
}

type FeedResponse struct {
	Locations []Location `json:"locations"`
	HasMore   bool       `json:"has_more"`
}

// ToggleResult is returned by like and bookmark toggles.
type ToggleResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}
