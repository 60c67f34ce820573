package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher mirrors each league's newest activity entry to
// auction.<code>.activity.
type NATSPublisher struct {
	conn publisher
	nc   *nats.Conn
}

// ActivityMessage is the body published for every commit.
type ActivityMessage struct {
	League  string          `json:"league"`
	Version int             `json:"version"`
	State   engine.State    `json:"state"`
	Entry   engine.LogEntry `json:"entry"`
}

func ActivitySubject(code string) string {
	return fmt.Sprintf("auction.%s.activity", code)
}

func ConnectNATS(url string, log *zap.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("auction-draft-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: nc, nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, snap lobby.Snapshot) error {
	if snap.Latest == nil {
		return nil
	}
	data, err := json.Marshal(ActivityMessage{
		League:  snap.Code,
		Version: snap.Version,
		State:   snap.State,
		Entry:   *snap.Latest,
	})
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if err := p.conn.Publish(ActivitySubject(snap.Code), data); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
