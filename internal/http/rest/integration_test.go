//go:build integration

package rest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/outpost/config"
	"github.com/bwise1/outpost/internal/db"
	deps "github.com/bwise1/outpost/internal/debs"
	"github.com/bwise1/outpost/internal/events"
	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/group"
	"github.com/bwise1/outpost/internal/model"
	"github.com/bwise1/outpost/util/storage"
	"github.com/bwise1/outpost/util/values"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "outpost",
				"POSTGRES_PASSWORD": "outpost",
				"POSTGRES_DB":       "outpost",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	database, err := db.New(ctx, fmt.Sprintf("postgres://outpost:outpost@%s:%s/outpost?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(ctx))
	return database
}

func newIntegrationAPI(t *testing.T) *API {
	database := startPostgres(t)
	return &API{
		Config: &config.Config{JwtSecret: testSecret, JwtExpires: "1h", PriorityRadiusKm: 50},
		Deps: &deps.Dependencies{
			DB:     database,
			Groups: group.NewService(group.NewPGStore(database), events.Discard),
		},
	}
}

func seedUser(t *testing.T, api *API, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := api.Deps.DB.Pool().Exec(context.Background(),
		`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, 'x')`,
		id, name, name+"@example.com")
	require.NoError(t, err)
	return id
}

func seedLocation(t *testing.T, api *API, title string, lat, lng float64, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := api.Deps.DB.Pool().Exec(context.Background(), `
		INSERT INTO locations (id, title, latitude, longitude, category_id, danger_level_id, is_approved, created_at)
		VALUES ($1, $2, $3, $4,
			(SELECT id FROM location_categories WHERE name = 'hospital'),
			(SELECT id FROM danger_levels WHERE name = 'caution'),
			TRUE, $5)`,
		id, title, lat, lng, createdAt)
	require.NoError(t, err)
	return id
}

func titles(locations []model.Location) []string {
	out := make([]string, len(locations))
	for i, l := range locations {
		out[i] = l.Title
	}
	return out
}

func TestIntegrationGeoQueries(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedLocation(t, api, "closest", 40.0, -74.0, now.Add(-72*time.Hour))
	seedLocation(t, api, "five km", 40.045, -74.0, now.Add(-48*time.Hour))
	seedLocation(t, api, "far newest", 40.5, -74.0, now.Add(-1*time.Hour))
	seedLocation(t, api, "far older", 41.0, -74.0, now.Add(-24*time.Hour))

	t.Run("nearby within radius ordered by distance", func(t *testing.T) {
		resp, status, _, err := api.NearbyLocationsHelper(ctx, model.NearbyLocationsParams{
			Latitude: 40, Longitude: -74, Radius: 10, Limit: 50,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "success", status)
		assert.Equal(t, []string{"closest", "five km"}, titles(resp.Locations))
		assert.Equal(t, 2, resp.Total)
		require.NotNil(t, resp.Locations[1].Distance)
		assert.InDelta(t, 5.0, *resp.Locations[1].Distance, 0.1)
	})

	t.Run("nearby total survives an empty page", func(t *testing.T) {
		resp, _, _, err := api.NearbyLocationsHelper(ctx, model.NearbyLocationsParams{
			Latitude: 40, Longitude: -74, Radius: 10, Limit: 50, Offset: 10,
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, resp.Locations)
		assert.Equal(t, 2, resp.Total)
	})

	t.Run("feed ranks nearby first then newest", func(t *testing.T) {
		lat, lng := 40.0, -74.0
		resp, _, _, err := api.FeedHelper(ctx, model.FeedParams{
			Latitude: &lat, Longitude: &lng, PriorityRadius: 10, Limit: 3,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"closest", "five km", "far newest"}, titles(resp.Locations))
		assert.True(t, resp.HasMore)
	})

	t.Run("feed without reference point is newest first", func(t *testing.T) {
		resp, _, _, err := api.FeedHelper(ctx, model.FeedParams{PriorityRadius: 10, Limit: 20}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"far newest", "far older", "five km", "closest"}, titles(resp.Locations))
		assert.False(t, resp.HasMore)
	})
}

func seedActiveUser(t *testing.T, api *API, name string, lat, lng float64, lastLogin time.Time, premium bool) {
	t.Helper()
	id := seedUser(t, api, name)
	ctx := context.Background()
	_, err := api.Deps.DB.Pool().Exec(ctx, `UPDATE users SET last_login = $2, is_premium = $3 WHERE id = $1`, id, lastLogin, premium)
	require.NoError(t, err)
	_, err = api.Deps.DB.Pool().Exec(ctx, `INSERT INTO user_locations (user_id, latitude, longitude) VALUES ($1, $2, $3)`, id, lat, lng)
	require.NoError(t, err)
}

func TestIntegrationActiveStatsCountsEveryoneInRadius(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedActiveUser(t, api, "fresh", 40.0, -74.0, now.Add(-5*time.Minute), true)
	seedActiveUser(t, api, "hour", 40.01, -74.0, now.Add(-time.Hour), false)
	seedActiveUser(t, api, "yesterday", 40.02, -74.0, now.Add(-26*time.Hour), false)
	seedActiveUser(t, api, "lastweek", 40.03, -74.0, now.Add(-7*24*time.Hour), true)
	seedActiveUser(t, api, "elsewhere", 45.0, -74.0, now.Add(-time.Minute), true)

	resp, status, _, err := api.ActiveStatsHelper(ctx, model.ActiveStatsParams{Latitude: 40, Longitude: -74, Radius: 10})
	require.NoError(t, err)
	assert.Equal(t, "success", status)
	assert.Equal(t, geo.ActivityStats{TotalUsers: 4, VeryActive: 1, Active: 1, Recent: 2, PremiumUsers: 2}, resp.Statistics)
}

func TestIntegrationStorePositionLabel(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()
	store := deps.StorePositionLabel(api.Deps.DB)

	mover := seedUser(t, api, "mover")
	still := seedUser(t, api, "still")
	for _, id := range []uuid.UUID{mover, still} {
		_, err := api.UpsertPosition(ctx, id, model.UpdatePositionRequest{Latitude: 35.1, Longitude: 33.9})
		require.NoError(t, err)
	}
	_, err := api.UpsertPosition(ctx, mover, model.UpdatePositionRequest{Latitude: 35.3, Longitude: 33.9})
	require.NoError(t, err)

	queued := geo.Point{Lat: 35.1, Lng: 33.9}
	require.NoError(t, store(ctx, mover, queued, "stale"))
	require.NoError(t, store(ctx, still, queued, "Nicosia, Cyprus"))
	require.NoError(t, store(ctx, still, queued, "second lookup"))

	label := func(id uuid.UUID) *string {
		var name *string
		require.NoError(t, api.Deps.DB.Pool().QueryRow(ctx, `SELECT location_name FROM user_locations WHERE user_id = $1`, id).Scan(&name))
		return name
	}
	assert.Nil(t, label(mover))
	require.NotNil(t, label(still))
	assert.Equal(t, "Nicosia, Cyprus", *label(still))
}

func TestIntegrationJoinRespectsMemberLimit(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	owner := seedUser(t, api, "owner")
	g, status, _, err := api.CreateGroupHelper(ctx, owner, model.CreateGroupRequest{Name: "Ruins", MemberLimit: 3})
	require.NoError(t, err)
	assert.Equal(t, "created", status)

	joiners := make([]uuid.UUID, 6)
	for i := range joiners {
		joiners[i] = seedUser(t, api, fmt.Sprintf("joiner%d", i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for _, id := range joiners {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := api.Deps.Groups.JoinByCode(ctx, id, g.InviteCode)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, group.ErrGroupFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, joined)
	assert.Equal(t, 4, full)

	members, err := api.Deps.Groups.Members(ctx, g.ID, owner)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestIntegrationLocationTagsImagesAndSearch(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	owner := seedUser(t, api, "owner")
	created, status, _, err := api.CreateLocationHelper(ctx, owner, model.CreateLocationRequest{
		Title:       "Old Mill",
		Description: "Flooded basement, 100% dark",
		Latitude:    35.2,
		Longitude:   33.4,
		Category:    "Factory",
		DangerLevel: "dangerous",
		Tags:        []string{"Water", " water ", "ruins"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", status)
	assert.Equal(t, []string{"ruins", "water"}, created.Tags)
	assert.Empty(t, created.Images)

	_, err = api.AddLocationImagesRepo(ctx, created.ID, owner, []string{"https://img.example/a.jpg"})
	require.NoError(t, err)
	images, err := api.AddLocationImagesRepo(ctx, created.ID, owner, []string{"https://img.example/b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, images[0].ImageOrder)

	_, err = api.Deps.DB.Pool().Exec(ctx, `UPDATE locations SET is_approved = TRUE WHERE id = $1`, created.ID)
	require.NoError(t, err)
	seedLocation(t, api, "Mill Pond", 35.9, 33.4, time.Now().Add(-time.Hour))
	seedLocation(t, api, "Harbour", 35.2, 33.4, time.Now())

	t.Run("listing carries images and tags", func(t *testing.T) {
		l, err := api.GetLocationRepo(ctx, created.ID, nil, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}, l.Images)
		assert.Equal(t, []string{"ruins", "water"}, l.Tags)
	})

	t.Run("text search is newest first", func(t *testing.T) {
		resp, _, _, err := api.SearchLocationsHelper(ctx, model.SearchLocationsParams{Query: "mill", Radius: 10, Limit: 20}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Old Mill", "Mill Pond"}, titles(resp.Locations))
		assert.Equal(t, 2, resp.TotalResults)
	})

	t.Run("radius narrows and orders by distance", func(t *testing.T) {
		lat, lng := 35.2, 33.4
		resp, _, _, err := api.SearchLocationsHelper(ctx, model.SearchLocationsParams{Query: "mill", Latitude: &lat, Longitude: &lng, Radius: 10, Limit: 20}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Old Mill"}, titles(resp.Locations))
	})

	t.Run("percent is matched literally", func(t *testing.T) {
		resp, _, _, err := api.SearchLocationsHelper(ctx, model.SearchLocationsParams{Query: "100%", Radius: 10, Limit: 20}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Old Mill"}, titles(resp.Locations))

		resp, _, _, err = api.SearchLocationsHelper(ctx, model.SearchLocationsParams{Query: "%", Radius: 10, Limit: 1}, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Locations, 1)
		assert.False(t, resp.HasMore)
	})
}

func TestIntegrationUploadLocationImagesGuards(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	owner := seedUser(t, api, "owner")
	other := seedUser(t, api, "other")
	id := seedLocation(t, api, "Depot", 35.0, 33.0, time.Now())
	_, err := api.Deps.DB.Pool().Exec(ctx, `UPDATE locations SET submitted_by = $2 WHERE id = $1`, id, owner)
	require.NoError(t, err)

	_, status, _, err := api.UploadLocationImagesHelper(ctx, owner, id, nil)
	require.Error(t, err)
	assert.Equal(t, values.NotAllowed, status)

	_, err = api.Deps.DB.Pool().Exec(ctx, `UPDATE users SET is_premium = TRUE`)
	require.NoError(t, err)

	_, status, _, err = api.UploadLocationImagesHelper(ctx, other, id, nil)
	require.Error(t, err)
	assert.Equal(t, values.NotFound, status)

	_, status, _, err = api.UploadLocationImagesHelper(ctx, owner, uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, values.NotFound, status)

	_, status, _, err = api.UploadLocationImagesHelper(ctx, owner, id, nil)
	require.ErrorIs(t, err, storage.ErrNotConfigured)
	assert.Equal(t, values.Unprocessable, status)
}

func TestIntegrationUserCollections(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	user := seedUser(t, api, "collector")
	first := seedLocation(t, api, "first saved", 35.0, 33.0, time.Now())
	second := seedLocation(t, api, "second saved", 35.1, 33.0, time.Now())
	for _, id := range []uuid.UUID{first, second} {
		_, err := api.ToggleRepo(ctx, bookmarkToggle, user, id)
		require.NoError(t, err)
	}

	t.Run("bookmarks most recently saved first", func(t *testing.T) {
		resp, _, _, err := api.BookmarksHelper(ctx, user, model.PageParams{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"second saved"}, titles(resp.Bookmarks))
		assert.True(t, resp.HasMore)
		assert.True(t, resp.Bookmarks[0].IsBookmarked)

		resp, _, _, err = api.BookmarksHelper(ctx, user, model.PageParams{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"first saved"}, titles(resp.Bookmarks))
		assert.False(t, resp.HasMore)
	})

	pending, err := api.CreateLocationRepo(ctx, user, model.CreateLocationRequest{
		Title: "pending spot", Latitude: 35, Longitude: 33, Category: "house", DangerLevel: "safe",
	})
	require.NoError(t, err)
	approved, err := api.CreateLocationRepo(ctx, user, model.CreateLocationRequest{
		Title: "approved spot", Latitude: 35, Longitude: 33, Category: "house", DangerLevel: "safe",
	})
	require.NoError(t, err)
	_, err = api.Deps.DB.Pool().Exec(ctx, `UPDATE locations SET is_approved = TRUE WHERE id = $1`, approved)
	require.NoError(t, err)

	t.Run("submissions by status", func(t *testing.T) {
		tests := []struct {
			status string
			want   []uuid.UUID
		}{
			{"pending", []uuid.UUID{pending}},
			{"approved", []uuid.UUID{approved}},
			{"all", []uuid.UUID{approved, pending}},
		}
		for _, tt := range tests {
			resp, _, _, err := api.SubmissionsHelper(ctx, user, model.SubmissionsParams{Status: tt.status, Limit: 20})
			require.NoError(t, err)
			got := make([]uuid.UUID, len(resp.Submissions))
			for i, l := range resp.Submissions {
				got[i] = l.ID
			}
			assert.Equal(t, tt.want, got, tt.status)
		}
	})
}

func TestIntegrationUpdateProfile(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	user := seedUser(t, api, "scout")
	seedUser(t, api, "ranger")

	age := 30
	updated, status, _, err := api.UpdateProfileHelper(ctx, user, model.UpdateProfileRequest{Age: &age})
	require.NoError(t, err)
	assert.Equal(t, values.Success, status)
	assert.Equal(t, "scout", updated.Username)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 30, *updated.Age)

	taken := "RANGER"
	_, status, _, err = api.UpdateProfileHelper(ctx, user, model.UpdateProfileRequest{Username: &taken})
	require.Error(t, err)
	assert.Equal(t, values.Conflict, status)

	own := "Scout"
	updated, _, _, err = api.UpdateProfileHelper(ctx, user, model.UpdateProfileRequest{Username: &own})
	require.NoError(t, err)
	assert.Equal(t, "Scout", updated.Username)
	assert.Equal(t, 30, *updated.Age)
}

func TestIntegrationMarkSingleNotificationRead(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	owner := seedUser(t, api, "owner")
	stranger := seedUser(t, api, "stranger")

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	for _, id := range ids {
		_, err := api.Deps.DB.Pool().Exec(ctx,
			`INSERT INTO notifications (id, user_id, type, title, message) VALUES ($1, $2, 'group_kick', 'Removed', 'You were removed')`, id, owner)
		require.NoError(t, err)
	}

	status, _, err := api.MarkNotificationReadHelper(ctx, stranger, ids[0])
	require.Error(t, err)
	assert.Equal(t, values.NotFound, status)

	status, _, err = api.MarkNotificationReadHelper(ctx, owner, ids[0])
	require.NoError(t, err)
	assert.Equal(t, values.Success, status)

	unread, err := api.ListNotificationsRepo(ctx, owner, 10, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, ids[1], unread[0].ID)
}

func TestIntegrationGroupMessageLikesAndLocationDetails(t *testing.T) {
	api := newIntegrationAPI(t)
	ctx := context.Background()

	owner := seedUser(t, api, "owner")
	friend := seedUser(t, api, "friend")
	spot := seedLocation(t, api, "Water Tower", 35.15, 33.35, time.Now())

	g, _, _, err := api.CreateGroupHelper(ctx, owner, model.CreateGroupRequest{Name: "Ruins"})
	require.NoError(t, err)
	_, err = api.Deps.Groups.JoinByCode(ctx, friend, g.InviteCode)
	require.NoError(t, err)

	msg, err := api.Deps.Groups.SendMessage(ctx, g.ID, owner, model.SendMessageRequest{
		MessageType: model.MessageLocation, Content: "meet here", LocationID: &spot,
	})
	require.NoError(t, err)

	res, err := api.Deps.Groups.ToggleMessageLike(ctx, g.ID, msg.ID, friend)
	require.NoError(t, err)
	assert.Equal(t, model.MessageLikeResult{Liked: true, LikeCount: 1}, res)
	res, err = api.Deps.Groups.ToggleMessageLike(ctx, g.ID, msg.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LikeCount)
	res, err = api.Deps.Groups.ToggleMessageLike(ctx, g.ID, msg.ID, friend)
	require.NoError(t, err)
	assert.Equal(t, model.MessageLikeResult{Liked: false, LikeCount: 1}, res)

	messages, err := api.Deps.Groups.ListMessages(ctx, g.ID, friend, nil, 10)
	require.NoError(t, err)
	var found *model.GroupMessage
	for i := range messages {
		if messages[i].ID == msg.ID {
			found = &messages[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1, found.LikeCount)
	require.NotNil(t, found.LocationTitle)
	assert.Equal(t, "Water Tower", *found.LocationTitle)
	require.NotNil(t, found.Latitude)
	assert.InDelta(t, 35.15, *found.Latitude, 1e-9)
}
