package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxActiveUsers caps the active-nearby list.
const maxActiveUsers = 100

var (
	errNotificationNotFound = errors.New("notification not found")
)

// UpsertPosition stores the single position row for userID and counts the
// update as activity.
func (api *API) UpsertPosition(ctx context.Context, userID uuid.UUID, req model.UpdatePositionRequest) (model.UserPosition, error) {
	var position model.UserPosition

	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		stmt := `
			INSERT INTO user_locations (user_id, latitude, longitude, location_name, accuracy, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				location_name = EXCLUDED.location_name,
				accuracy = EXCLUDED.accuracy,
				updated_at = NOW()
			RETURNING user_id, latitude, longitude, location_name, accuracy, updated_at`

		err := tx.QueryRow(ctx, stmt, userID, req.Latitude, req.Longitude, req.LocationName, req.Accuracy).Scan(
			&position.UserID,
			&position.Latitude,
			&position.Longitude,
			&position.LocationName,
			&position.Accuracy,
			&position.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting position: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("touching last login: %w", err)
		}
		return nil
	})
	return position, err
}

func (api *API) ActiveNearbyRepo(ctx context.Context, userID uuid.UUID, params model.ActiveNearbyParams) ([]model.ActiveUser, error) {
	stmt := fmt.Sprintf(`
		SELECT id, username, avatar_url, is_premium, latitude, longitude, location_name, last_login, distance_km
		FROM (
			SELECT u.id, u.username, u.avatar_url, u.is_premium,
			       ul.latitude, ul.longitude, ul.location_name, u.last_login,
			       %s AS distance_km
			FROM users u
			JOIN user_locations ul ON ul.user_id = u.id
			WHERE u.is_active
			  AND u.id <> $3
			  AND u.last_login > NOW() - make_interval(hours => $4)
		) nearby
		WHERE distance_km <= $5
		ORDER BY distance_km ASC, last_login DESC
		LIMIT %d`, geo.DistanceSQL("ul.latitude", "ul.longitude", "$1", "$2"), maxActiveUsers)

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt,
		params.Latitude, params.Longitude, userID, params.ActivityThreshold, params.Radius,
	)
	if err != nil {
		return nil, fmt.Errorf("querying active users: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ActiveUser, error) {
		var u model.ActiveUser
		err := row.Scan(
			&u.ID, &u.Username, &u.AvatarURL, &u.IsPremium,
			&u.Latitude, &u.Longitude, &u.LocationName, &u.LastLogin, &u.Distance,
		)
		return u, err
	})
}

// ActivitySamplesRepo loads every active user with a position inside the
// radius. Users who never logged in are aged from signup.
func (api *API) ActivitySamplesRepo(ctx context.Context, params model.ActiveStatsParams, now time.Time) ([]geo.ActivitySample, error) {
	stmt := fmt.Sprintf(`
		SELECT last_login, is_premium
		FROM (
			SELECT COALESCE(u.last_login, u.created_at) AS last_login, u.is_premium, %s AS distance_km
			FROM users u
			JOIN user_locations ul ON ul.user_id = u.id
			WHERE u.is_active
		) nearby
		WHERE distance_km <= $3`, geo.DistanceSQL("ul.latitude", "ul.longitude", "$1", "$2"))

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, params.Latitude, params.Longitude, params.Radius)
	if err != nil {
		return nil, fmt.Errorf("querying activity samples: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (geo.ActivitySample, error) {
		var (
			lastLogin time.Time
			sample    geo.ActivitySample
		)
		if err := row.Scan(&lastLogin, &sample.IsPremium); err != nil {
			return sample, err
		}
		sample.MinutesSinceLogin = geo.MinutesSince(lastLogin, now)
		return sample, nil
	})
}

func (api *API) ListNotificationsRepo(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]model.Notification, error) {
	stmt := `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Notification, error) {
		var n model.Notification
		err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt)
		return n, err
	})
}

func (api *API) MarkNotificationsReadRepo(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := api.Deps.DB.Pool().Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (api *API) MarkNotificationReadRepo(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := api.Deps.DB.Pool().Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNotificationNotFound
	}
	return nil
}

// BookmarksRepo pages the user's bookmarked locations, most recently saved
// first. One extra row is fetched for has_more.
func (api *API) BookmarksRepo(ctx context.Context, userID uuid.UUID, params model.PageParams) ([]model.Location, error) {
	q := &locationQuery{}
	cols := q.selectList("NULL::DOUBLE PRECISION", &userID)

	stmt := fmt.Sprintf(`
		SELECT %s %s
		JOIN bookmarks saved ON saved.location_id = l.id AND saved.user_id = %s
		WHERE l.is_approved AND l.deleted_at IS NULL
		ORDER BY saved.created_at DESC
		LIMIT %s OFFSET %s`,
		cols, locationJoins, q.arg(userID), q.arg(params.Limit+1), q.arg(params.Offset))

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row)
	})
}

// SubmissionsRepo pages the locations the user submitted, newest first.
func (api *API) SubmissionsRepo(ctx context.Context, userID uuid.UUID, params model.SubmissionsParams) ([]model.Location, error) {
	q := &locationQuery{}
	cols := q.selectList("NULL::DOUBLE PRECISION", &userID)

	where := []string{"l.submitted_by = " + q.arg(userID), "l.deleted_at IS NULL"}
	switch params.Status {
	case "pending":
		where = append(where, "NOT l.is_approved")
	case "approved":
		where = append(where, "l.is_approved")
	}

	stmt := fmt.Sprintf(`
		SELECT %s %s
		WHERE %s
		ORDER BY l.created_at DESC
		LIMIT %s OFFSET %s`,
		cols, locationJoins, strings.Join(where, " AND "), q.arg(params.Limit+1), q.arg(params.Offset))

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row)
	})
}

// UpdateProfileRepo applies the non-nil fields of req.
func (api *API) UpdateProfileRepo(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (model.User, error) {
	stmt := `
		UPDATE users SET
			username = COALESCE($2, username),
			age = COALESCE($3, age),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(api.Deps.DB.Pool().QueryRow(ctx, stmt, userID, req.Username, req.Age, req.AvatarURL))
	if isUniqueViolation(err) {
		return model.User{}, errUsernameTaken
	}
	return user, err
}

func (api *API) UsernameTakenByOther(ctx context.Context, username string, userID uuid.UUID) (bool, error) {
	var taken bool
	err := api.Deps.DB.Pool().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id <> $2)`, username, userID,
	).Scan(&taken)
	return taken, err
}
