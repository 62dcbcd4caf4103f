package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"`
	Age          *int       `json:"age,omitempty"`
	AuthProvider string     `json:"auth_provider"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	IsPremium    bool       `json:"is_premium"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPosition is the single last-known position kept per user.
type UserPosition struct {
	UserID       uuid.UUID `json:"user_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName *string   `json:"location_name,omitempty"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UpdatePositionRequest struct {
	Latitude     float64  `json:"latitude" validate:"latitude"`
	Longitude    float64  `json:"longitude" validate:"longitude"`
	LocationName *string  `json:"location_name" validate:"omitempty,max=255"`
	Accuracy     *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

type ActiveNearbyParams struct {
	Latitude          float64 `schema:"latitude" validate:"latitude"`
	Longitude         float64 `schema:"longitude" validate:"longitude"`
	Radius            float64 `schema:"radius" validate:"gt=0,lte=500"`
	ActivityThreshold int     `schema:"activity_threshold" validate:"gte=1,lte=168"`
}

type ActiveStatsParams struct {
	Latitude  float64 `schema:"latitude" validate:"latitude"`
	Longitude float64 `schema:"longitude" validate:"longitude"`
	Radius    float64 `schema:"radius" validate:"gt=0,lte=500"`
}

type ActiveUser struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	IsPremium         bool      `json:"is_premium"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	LocationName      *string   `json:"location_name,omitempty"`
	LastLogin         time.Time `json:"last_login"`
	Distance          float64   `json:"distance_km"`
	MinutesSinceLogin float64   `json:"minutes_since_login"`
	ActivityStatus    string    `json:"activity_status"`
}

type ActiveNearbyResponse struct {
	Users      []ActiveUser       `json:"users"`
	TotalCount int                `json:"total_count"`
	Query      ActiveNearbyParams `json:"query"`
}

type ActiveStatsResponse struct {
	Statistics interface{}       `json:"statistics"`
	Query      ActiveStatsParams `json:"query"`
}

type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
}

type UpdateProfileRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=50,alphanum"`
	Age       *int    `json:"age" validate:"omitempty,gte=13,lte=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=500"`
}

// Empty reports whether the request changes nothing.
func (r UpdateProfileRequest) Empty() bool {
	return r.Username == nil && r.Age == nil && r.AvatarURL == nil
}

type PageParams struct {
	Limit  int `schema:"limit" validate:"gte=1,lte=50"`
	Offset int `schema:"offset" validate:"gte=0"`
}

type SubmissionsParams struct {
	Status string `schema:"status" validate:"oneof=pending approved all"`
	Limit  int    `schema:"limit" validate:"gte=1,lte=50"`
	Offset int    `schema:"offset" validate:"gte=0"`
}

type BookmarksResponse struct {
	Bookmarks []Location `json:"bookmarks"`
	HasMore   bool       `json:"has_more"`
}

type SubmissionsResponse struct {
	Submissions []Location `json:"submissions"`
	HasMore     bool       `json:"has_more"`
}
