package rest

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util"
	"github.com/bwise1/outpost/util/values"
	"github.com/golang-jwt/jwt"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var (
	errInvalidCredentials = errors.New("invalid email or password")
	errAccountDisabled    = errors.New("account is disabled")
	errEmailTaken         = errors.New("email already registered")
	errUsernameTaken      = errors.New("username already taken")
	errGoogleAudience     = errors.New("google token was not issued for this application")
	errGoogleUnverified   = errors.New("google email is not verified")
)

func (api *API) createToken(id string) (string, time.Time, error) {
	expTime, err := time.ParseDuration(api.Config.JwtExpires)
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expiresAt := now.Add(expTime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
		"typ": "access",
	})

	tokenString, err := token.SignedString([]byte(api.Config.JwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (api *API) authResponse(user model.User) (model.AuthResponse, error) {
	token, expiresAt, err := api.createToken(user.ID.String())
	if err != nil {
		return model.AuthResponse{}, err
	}
	return model.AuthResponse{User: user, Token: token, ExpiresAt: expiresAt.Unix()}, nil
}

func (api *API) RegisterHelper(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, string, string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	usernameTaken, emailTaken, err := api.UserExists(ctx, req.Username, req.Email)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Error checking existing users", err
	}
	if emailTaken {
		return model.AuthResponse{}, values.Conflict, "Email already exists", errEmailTaken
	}
	if usernameTaken {
		return model.AuthResponse{}, values.Conflict, "Username already exists", errUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Error hashing password", err
	}

	age := req.Age
	user := model.User{
		ID:           util.GenerateUUID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: util.StringPtr(string(hash)),
		Age:          &age,
		AuthProvider: "email",
		IsActive:     true,
	}
	if user, err = api.CreateUserRepo(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return model.AuthResponse{}, values.Conflict, "Username or email already exists", err
		}
		return model.AuthResponse{}, values.Error, "Error creating new user", err
	}

	resp, err := api.authResponse(user)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Failed to create token", err
	}
	return resp, values.Created, "User registered successfully", nil
}

func (api *API) LoginHelper(ctx context.Context, req model.LoginRequest) (model.AuthResponse, string, string, error) {
	user, err := api.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AuthResponse{}, values.NotAuthorised, "Invalid credentials", errInvalidCredentials
	}
	if err != nil {
		return model.AuthResponse{}, values.Error, "Error fetching user", err
	}
	if user.PasswordHash == nil {
		return model.AuthResponse{}, values.NotAuthorised, "Invalid credentials", errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, values.NotAuthorised, "Invalid credentials", errInvalidCredentials
	}
	if !user.IsActive {
		return model.AuthResponse{}, values.NotAllowed, "Account disabled", errAccountDisabled
	}

	if pos, ok := req.Position(); ok {
		position, err := api.UpsertPosition(ctx, user.ID, pos)
		if err != nil {
			return model.AuthResponse{}, values.Error, "Error saving position", err
		}
		api.queueLabel(user.ID, position)
	} else if err := api.TouchLastLogin(ctx, user.ID); err != nil {
		return model.AuthResponse{}, values.Error, "Error updating last login", err
	}
	now := time.Now()
	user.LastLogin = &now

	resp, err := api.authResponse(user)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Failed to create token", err
	}
	return resp, values.Success, "Login successful", nil
}

// GoogleAuthHelper resolves the Google account behind accessToken and logs it
// in, registering it first when the email is new.
func (api *API) GoogleAuthHelper(ctx context.Context, accessToken string) (model.AuthResponse, string, string, error) {
	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
	))
	if err != nil {
		return model.AuthResponse{}, values.Error, "Failed to reach google", err
	}

	if api.Config.GoogleClientID != "" {
		info, err := svc.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
		if err != nil {
			return model.AuthResponse{}, values.NotAuthorised, "Invalid google token", err
		}
		if info.Audience != api.Config.GoogleClientID && info.IssuedTo != api.Config.GoogleClientID {
			return model.AuthResponse{}, values.NotAuthorised, "Invalid google token", errGoogleAudience
		}
	}

	userInfo, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return model.AuthResponse{}, values.NotAuthorised, "Failed to get google user info", err
	}
	if userInfo.VerifiedEmail != nil && !*userInfo.VerifiedEmail {
		return model.AuthResponse{}, values.NotAllowed, "Google email is not verified", errGoogleUnverified
	}

	email := strings.ToLower(strings.TrimSpace(userInfo.Email))
	user, err := api.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActive {
			return model.AuthResponse{}, values.NotAllowed, "Account disabled", errAccountDisabled
		}
		if err := api.TouchLastLogin(ctx, user.ID); err != nil {
			return model.AuthResponse{}, values.Error, "Error updating last login", err
		}
		resp, err := api.authResponse(user)
		if err != nil {
			return model.AuthResponse{}, values.Error, "Failed to create token", err
		}
		return resp, values.Success, "Login successful", nil

	case !errors.Is(err, pgx.ErrNoRows):
		return model.AuthResponse{}, values.Error, "Error fetching user", err
	}

	username, err := usernameFromEmail(email)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Error generating username", err
	}
	user = model.User{
		ID:           util.GenerateUUID(),
		Username:     username,
		Email:        email,
		AuthProvider: "google",
		IsActive:     true,
	}
	if userInfo.Picture != "" {
		user.AvatarURL = util.StringPtr(userInfo.Picture)
	}
	if user, err = api.CreateUserRepo(ctx, user); err != nil {
		return model.AuthResponse{}, values.Error, "Error creating new user", err
	}

	resp, err := api.authResponse(user)
	if err != nil {
		return model.AuthResponse{}, values.Error, "Failed to create token", err
	}
	return resp, values.Created, "Account created successfully", nil
}

// usernameFromEmail keeps the alphanumeric part of the mailbox name and adds a
// short random suffix.
func usernameFromEmail(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == 40 {
			break
		}
	}
	base := b.String()
	if len(base) < 3 {
		base = "user" + base
	}

	suffix, err := util.GenerateShortCode(6)
	if err != nil {
		return "", err
	}
	return base + strings.ToLower(suffix), nil
}
