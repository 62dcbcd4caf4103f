package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const defaultSubjectPrefix = "outpost"

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("outpost-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to nats")
	return nc, nil
}

type publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
}

// NATSSink publishes each event as JSON on <prefix>.<event type>.
type NATSSink struct {
	conn   publisher
	prefix string
}

func NewNATSSink(conn publisher) *NATSSink {
	return &NATSSink{conn: conn, prefix: defaultSubjectPrefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(t Type) string {
	return s.prefix + "." + string(t)
}

func (s *NATSSink) Handle(_ context.Context, ev Event) error {
	if !s.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := s.conn.Publish(s.Subject(ev.Type), body); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}
	return nil
}
