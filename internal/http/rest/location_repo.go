package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	errLocationNotFound = errors.New("location not found")
	errUnknownCategory  = errors.New("unknown category")
	errUnknownDanger    = errors.New("unknown danger level")
	errCommentParent    = errors.New("parent comment not found on this location")
	errPremiumRequired  = errors.New("premium membership required")
)

// locationQuery accumulates positional arguments for a dynamically built
// location statement.
type locationQuery struct {
	args []any
}

func (q *locationQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// selectList returns the shared location columns. distance is a SQL
// expression or NULL, viewer adds the is_liked and is_bookmarked flags.
func (q *locationQuery) selectList(distance string, viewer *uuid.UUID) string {
	liked, bookmarked := "FALSE", "FALSE"
	if viewer != nil {
		p := q.arg(*viewer)
		liked = fmt.Sprintf("EXISTS(SELECT 1 FROM likes lk WHERE lk.location_id = l.id AND lk.user_id = %s)", p)
		bookmarked = fmt.Sprintf("EXISTS(SELECT 1 FROM bookmarks bm WHERE bm.location_id = l.id AND bm.user_id = %s)", p)
	}

	return fmt.Sprintf(`l.id, l.title, l.description, l.latitude, l.longitude, l.address,
		c.name AS category, c.icon AS category_icon, d.name AS danger_level, d.color AS danger_color,
		l.submitted_by, u.username AS submitter, l.is_approved,
		l.likes_count, l.bookmarks_count, l.comments_count, l.views_count, l.created_at,
		%s AS distance, %s AS is_liked, %s AS is_bookmarked,
		%s AS images, %s AS tags`, distance, liked, bookmarked, locationImages, locationTags)
}

const (
	locationImages = `ARRAY(SELECT li.image_url FROM location_images li WHERE li.location_id = l.id ORDER BY li.image_order, li.created_at)`
	locationTags   = `ARRAY(SELECT t.name FROM location_tags lt JOIN tags t ON t.id = lt.tag_id WHERE lt.location_id = l.id ORDER BY t.name)`
)

const locationJoins = `
	FROM locations l
	JOIN location_categories c ON c.id = l.category_id
	JOIN danger_levels d ON d.id = l.danger_level_id
	LEFT JOIN users u ON u.id = l.submitted_by`

// locationFields is the column order produced by selectList, used by outer
// queries wrapping it in a subquery.
const locationFields = `id, title, description, latitude, longitude, address, category, category_icon,
	danger_level, danger_color, submitted_by, submitter, is_approved, likes_count, bookmarks_count,
	comments_count, views_count, created_at, distance, is_liked, is_bookmarked, images, tags`

func scanLocation(row pgx.Row, extra ...any) (model.Location, error) {
	var l model.Location
	dest := []any{
		&l.ID, &l.Title, &l.Description, &l.Latitude, &l.Longitude, &l.Address,
		&l.Category, &l.CategoryIcon, &l.DangerLevel, &l.DangerColor,
		&l.SubmittedBy, &l.SubmitterName, &l.IsApproved,
		&l.LikesCount, &l.BookmarksCount, &l.CommentsCount, &l.ViewsCount, &l.CreatedAt,
		&l.Distance, &l.IsLiked, &l.IsBookmarked, &l.Images, &l.Tags,
	}
	err := row.Scan(append(dest, extra...)...)
	return l, err
}

// NearbyLocationsRepo returns approved locations within the radius ordered by
// distance, plus the number of matches before paging.
func (api *API) NearbyLocationsRepo(ctx context.Context, params model.NearbyLocationsParams, viewer *uuid.UUID) ([]model.Location, int, error) {
	q := &locationQuery{}
	lat, lng := q.arg(params.Latitude), q.arg(params.Longitude)
	cols := q.selectList(geo.DistanceSQL("l.latitude", "l.longitude", lat, lng), viewer)

	where := []string{"l.is_approved", "l.deleted_at IS NULL"}
	if params.Category != "" {
		where = append(where, "c.name = "+q.arg(params.Category))
	}

	stmt := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM (SELECT %s %s WHERE %s) nearby
		WHERE distance <= %s
		ORDER BY distance ASC, created_at DESC
		LIMIT %s OFFSET %s`,
		locationFields, cols, locationJoins, strings.Join(where, " AND "),
		q.arg(params.Radius), q.arg(params.Limit), q.arg(params.Offset))

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying nearby locations: %w", err)
	}

	total := 0
	locations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row, &total)
	})
	if err != nil {
		return nil, 0, err
	}

	// An offset past the end returns no rows to carry the window count.
	if len(locations) == 0 && params.Offset > 0 {
		countQ := &locationQuery{}
		lat, lng := countQ.arg(params.Latitude), countQ.arg(params.Longitude)
		countWhere := []string{"l.is_approved", "l.deleted_at IS NULL",
			geo.DistanceSQL("l.latitude", "l.longitude", lat, lng) + " <= " + countQ.arg(params.Radius)}
		if params.Category != "" {
			countWhere = append(countWhere, "c.name = "+countQ.arg(params.Category))
		}
		countStmt := fmt.Sprintf(`SELECT COUNT(*) %s WHERE %s`, locationJoins, strings.Join(countWhere, " AND "))
		if err := api.Deps.DB.Pool().QueryRow(ctx, countStmt, countQ.args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting nearby locations: %w", err)
		}
	}
	return locations, total, nil
}

// feedQuery builds the feed statement. With a reference point, rows inside
// the priority radius come first by distance and the rest follow newest
// first. One extra row is fetched so the caller can report has_more.
func feedQuery(params model.FeedParams, viewer *uuid.UUID) (string, []any) {
	q := &locationQuery{}

	distance := "NULL::DOUBLE PRECISION"
	ranked := params.Latitude != nil && params.Longitude != nil
	if ranked {
		distance = geo.DistanceSQL("l.latitude", "l.longitude", q.arg(*params.Latitude), q.arg(*params.Longitude))
	}
	cols := q.selectList(distance, viewer)

	where := []string{"l.is_approved", "l.deleted_at IS NULL"}
	if params.Category != "" {
		where = append(where, "c.name = "+q.arg(params.Category))
	}

	rank := fmt.Sprintf("%d", geo.RankOther)
	order := "created_at DESC"
	if ranked {
		rank = geo.FeedRankSQL("distance", q.arg(params.PriorityRadius))
		order = geo.FeedOrderSQL("feed_rank", "distance", "created_at")
	}

	stmt := fmt.Sprintf(`
		SELECT %s
		FROM (
			SELECT feed.*, %s AS feed_rank
			FROM (SELECT %s %s WHERE %s) feed
		) ranked
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		locationFields, rank, cols, locationJoins, strings.Join(where, " AND "),
		order, q.arg(params.Limit+1), q.arg(params.Offset))
	return stmt, q.args
}

// FeedRepo pages the approved feed in feedQuery order.
func (api *API) FeedRepo(ctx context.Context, params model.FeedParams, viewer *uuid.UUID) ([]model.Location, error) {
	stmt, args := feedQuery(params, viewer)
	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row)
	})
}

// RandomLocationsRepo samples approved locations inside the radius. Order is
// unspecified.
func (api *API) RandomLocationsRepo(ctx context.Context, params model.RandomLocationsParams, viewer *uuid.UUID) ([]model.Location, error) {
	q := &locationQuery{}
	lat, lng := q.arg(params.Latitude), q.arg(params.Longitude)
	cols := q.selectList(geo.DistanceSQL("l.latitude", "l.longitude", lat, lng), viewer)

	stmt := fmt.Sprintf(`
		SELECT %s
		FROM (SELECT %s %s WHERE l.is_approved AND l.deleted_at IS NULL) pool
		WHERE distance <= %s
		ORDER BY random()
		LIMIT %s`,
		locationFields, cols, locationJoins, q.arg(params.Radius), q.arg(params.Limit))

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying random locations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row)
	})
}

// GetLocationRepo loads one location. approvedOnly hides pending and deleted rows.
func (api *API) GetLocationRepo(ctx context.Context, id uuid.UUID, viewer *uuid.UUID, approvedOnly bool) (model.Location, error) {
	q := &locationQuery{}
	cols := q.selectList("NULL::DOUBLE PRECISION", viewer)

	where := "l.id = " + q.arg(id)
	if approvedOnly {
		where += " AND l.is_approved AND l.deleted_at IS NULL"
	}

	stmt := fmt.Sprintf(`SELECT %s %s WHERE %s`, cols, locationJoins, where)
	l, err := scanLocation(api.Deps.DB.Pool().QueryRow(ctx, stmt, q.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Location{}, errLocationNotFound
	}
	return l, err
}

func (api *API) IncrementViewsRepo(ctx context.Context, id uuid.UUID) error {
	tag, err := api.Deps.DB.Pool().Exec(ctx,
		`UPDATE locations SET views_count = views_count + 1 WHERE id = $1 AND is_approved AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errLocationNotFound
	}
	return nil
}

// CreateLocationRepo stores a submission. New locations wait for approval.
func (api *API) CreateLocationRepo(ctx context.Context, submitter uuid.UUID, req model.CreateLocationRequest) (uuid.UUID, error) {
	id := uuid.New()

	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		var categoryID, dangerID int
		err := tx.QueryRow(ctx, `SELECT id FROM location_categories WHERE name = $1`, strings.ToLower(req.Category)).Scan(&categoryID)
		if errors.Is(err, pgx.ErrNoRows) {
			return errUnknownCategory
		} else if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `SELECT id FROM danger_levels WHERE name = $1`, strings.ToLower(req.DangerLevel)).Scan(&dangerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return errUnknownDanger
		} else if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO locations (id, title, description, latitude, longitude, address, category_id, danger_level_id, submitted_by, is_approved)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)`,
			id, req.Title, req.Description, req.Latitude, req.Longitude, req.Address, categoryID, dangerID, submitter,
		)
		if err != nil {
			return err
		}

		for _, tag := range normalizeTags(req.Tags) {
			_, err := tx.Exec(ctx, `
				WITH t AS (
					INSERT INTO tags (name) VALUES ($2)
					ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
					RETURNING id
				)
				INSERT INTO location_tags (location_id, tag_id) SELECT $1, id FROM t
				ON CONFLICT DO NOTHING`, id, tag)
			if err != nil {
				return fmt.Errorf("tagging location: %w", err)
			}
		}
		return nil
	})
	return id, err
}

// normalizeTags lower-cases and trims tags, dropping blanks and repeats.
func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchQuery builds the text and radius search. Without a reference point
// results are newest first, otherwise nearest first inside the radius. One
// extra row is fetched for has_more.
func searchQuery(params model.SearchLocationsParams, viewer *uuid.UUID) (string, []any) {
	q := &locationQuery{}

	distance := "NULL::DOUBLE PRECISION"
	near := params.Latitude != nil && params.Longitude != nil
	if near {
		distance = geo.DistanceSQL("l.latitude", "l.longitude", q.arg(*params.Latitude), q.arg(*params.Longitude))
	}
	cols := q.selectList(distance, viewer)

	where := []string{"l.is_approved", "l.deleted_at IS NULL"}
	if term := strings.TrimSpace(params.Query); term != "" {
		p := q.arg("%" + likeEscaper.Replace(term) + "%")
		where = append(where, fmt.Sprintf("(l.title ILIKE %[1]s OR l.description ILIKE %[1]s OR l.address ILIKE %[1]s)", p))
	}
	if params.Category != "" {
		where = append(where, "c.name = "+q.arg(params.Category))
	}

	outer := ""
	order := "created_at DESC"
	if near {
		outer = "WHERE distance <= " + q.arg(params.Radius)
		order = "distance ASC, created_at DESC"
	}

	stmt := fmt.Sprintf(`
		SELECT %s
		FROM (SELECT %s %s WHERE %s) found
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		locationFields, cols, locationJoins, strings.Join(where, " AND "),
		outer, order, q.arg(params.Limit+1), q.arg(params.Offset))
	return stmt, q.args
}

func (api *API) SearchLocationsRepo(ctx context.Context, params model.SearchLocationsParams, viewer *uuid.UUID) ([]model.Location, error) {
	stmt, args := searchQuery(params, viewer)
	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("searching locations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Location, error) {
		return scanLocation(row)
	})
}

// AddLocationImagesRepo appends uploaded image URLs after any existing images
// of the location.
func (api *API) AddLocationImagesRepo(ctx context.Context, locationID, uploadedBy uuid.UUID, urls []string) ([]model.LocationImage, error) {
	images := make([]model.LocationImage, 0, len(urls))

	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		var next int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(image_order) + 1, 0) FROM location_images WHERE location_id = $1`, locationID,
		).Scan(&next)
		if err != nil {
			return err
		}

		for i, url := range urls {
			img := model.LocationImage{ID: uuid.New(), LocationID: locationID, ImageURL: url, ImageOrder: next + i}
			err := tx.QueryRow(ctx, `
				INSERT INTO location_images (id, location_id, image_url, image_order, uploaded_by)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING created_at`,
				img.ID, locationID, url, img.ImageOrder, uploadedBy,
			).Scan(&img.CreatedAt)
			if err != nil {
				return fmt.Errorf("saving location image: %w", err)
			}
			images = append(images, img)
		}
		return nil
	})
	return images, err
}

// toggleTarget names the pair table and the counter it feeds.
type toggleTarget struct {
	table   string
	counter string
}

var (
	likeToggle     = toggleTarget{table: "likes", counter: "likes_count"}
	bookmarkToggle = toggleTarget{table: "bookmarks", counter: "bookmarks_count"}
)

// ToggleRepo deletes the (user, location) pair if present and inserts it
// otherwise, then re-syncs the counter from the pair count.
func (api *API) ToggleRepo(ctx context.Context, target toggleTarget, userID, locationID uuid.UUID) (model.ToggleResult, error) {
	var result model.ToggleResult

	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND is_approved AND deleted_at IS NULL)`, locationID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return errLocationNotFound
		}

		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND location_id = $2`, target.table), userID, locationID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (user_id, location_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, target.table),
				userID, locationID); err != nil {
				return err
			}
			result.Active = true
		}

		return tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE locations SET %[1]s = (SELECT COUNT(*) FROM %[2]s WHERE location_id = $1)
			WHERE id = $1
			RETURNING %[1]s`, target.counter, target.table), locationID,
		).Scan(&result.Count)
	})
	return result, err
}

// CommentsRepo returns every comment on the location oldest first.
func (api *API) CommentsRepo(ctx context.Context, locationID uuid.UUID) ([]model.Comment, error) {
	stmt := `
		SELECT c.id, c.location_id, c.user_id, u.username, c.parent_id, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.location_id = $1
		ORDER BY c.created_at ASC`

	rows, err := api.Deps.DB.Pool().Query(ctx, stmt, locationID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Comment, error) {
		var c model.Comment
		err := row.Scan(&c.ID, &c.LocationID, &c.UserID, &c.Username, &c.ParentID, &c.Content, &c.CreatedAt)
		return c, err
	})
}

func (api *API) CreateCommentRepo(ctx context.Context, userID, locationID uuid.UUID, req model.CreateCommentRequest) (model.Comment, error) {
	comment := model.Comment{
		ID:         uuid.New(),
		LocationID: locationID,
		UserID:     userID,
		ParentID:   req.ParentID,
		Content:    strings.TrimSpace(req.Content),
	}

	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND is_approved AND deleted_at IS NULL)`, locationID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return errLocationNotFound
		}

		if req.ParentID != nil {
			err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1 AND location_id = $2)`, *req.ParentID, locationID,
			).Scan(&exists)
			if err != nil {
				return err
			}
			if !exists {
				return errCommentParent
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO comments (id, location_id, user_id, parent_id, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, (SELECT username FROM users WHERE id = $3)`,
			comment.ID, locationID, userID, req.ParentID, comment.Content,
		).Scan(&comment.CreatedAt, &comment.Username)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE locations SET comments_count = (SELECT COUNT(*) FROM comments WHERE location_id = $1) WHERE id = $1`, locationID)
		return err
	})
	return comment, err
}
