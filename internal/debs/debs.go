package deps

import (
	"context"
	"fmt"

	"github.com/bwise1/outpost/config"
	"github.com/bwise1/outpost/internal/db"
	"github.com/bwise1/outpost/internal/events"
	"github.com/bwise1/outpost/internal/geo"
	"github.com/bwise1/outpost/internal/group"
	"github.com/bwise1/outpost/internal/http/nominatim"
	"github.com/bwise1/outpost/util/storage"
	"github.com/bwise1/outpost/util/websockets"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Dependencies struct {
	DB         *db.DB
	Cloudinary *storage.Cloudinary
	WebSocket  *websockets.WebSocketManager
	NATS       *nats.Conn
	Geocoder   *nominatim.Client
	Labeler    *nominatim.Labeler
	Groups     *group.Service
}

// New opens the pool and builds the optional integrations. Cloudinary, NATS,
// the geocoder and its labeler stay nil when unconfigured or unreachable.
func New(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	database, err := db.New(ctx, cfg.Dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	store := group.NewPGStore(database)
	websocket := websockets.NewWebSocketManager(func(ctx context.Context, groupID, userID uuid.UUID) error {
		_, err := store.MemberRole(ctx, groupID, userID)
		return err
	})

	sinks := []events.Sink{events.NewNotificationSink(database.Pool()), websocket}

	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = events.ConnectNATS(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, group events will not be published")
		} else {
			sinks = append(sinks, events.NewNATSSink(nc))
		}
	}

	var (
		geocoder *nominatim.Client
		labeler  *nominatim.Labeler
	)
	if cfg.GeocoderEnabled {
		geocoder, err = nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent)
		if err != nil {
			log.Warn().Err(err).Msg("reverse geocoder disabled")
		} else {
			labeler = nominatim.NewLabeler(geocoder, StorePositionLabel(database), nominatim.DefaultLabelQueue)
		}
	}

	dispatcher := events.NewDispatcher(sinks...)

	deps := Dependencies{
		DB:         database,
		Cloudinary: storage.NewCloudinary(cfg),
		WebSocket:  websocket,
		NATS:       nc,
		Geocoder:   geocoder,
		Labeler:    labeler,
		Groups:     group.NewService(store, dispatcher.BestEffort(), group.WithCodeAttempts(cfg.InviteCodeAttempts)),
	}
	return &deps, nil
}

// StorePositionLabel fills location_name for a position that is still
// unlabeled and has not moved since the lookup was queued.
func StorePositionLabel(database *db.DB) nominatim.LabelWriter {
	return func(ctx context.Context, userID uuid.UUID, p geo.Point, label string) error {
		_, err := database.Pool().Exec(ctx, `
			UPDATE user_locations SET location_name = $4
			WHERE user_id = $1 AND latitude = $2 AND longitude = $3 AND location_name IS NULL`,
			userID, p.Lat, p.Lng, label)
		if err != nil {
			return fmt.Errorf("storing position label: %w", err)
		}
		return nil
	}
}

// Close drains NATS and closes the pool.
func (d *Dependencies) Close() {
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			log.Warn().Err(err).Msg("nats drain failed")
		}
	}
	d.DB.Close()
}
