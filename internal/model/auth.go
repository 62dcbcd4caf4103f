package model

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	Age      int    `json:"age" validate:"required,gte=13,lte=120"`
}

type LoginRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,longitude"`
	LocationName *string  `json:"location_name" validate:"omitempty,max=255"`
	Accuracy     *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

// Position returns the optional login position when both coordinates are present.
func (r LoginRequest) Position() (UpdatePositionRequest, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return UpdatePositionRequest{}, false
	}
	return UpdatePositionRequest{
		Latitude:     *r.Latitude,
		Longitude:    *r.Longitude,
		LocationName: r.LocationName,
		Accuracy:     r.Accuracy,
	}, true
}

type GoogleAuthRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type AuthResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
