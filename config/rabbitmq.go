package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var ErrBrokerNotConfigured = errors.New("rabbitmq host not configured")

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Pass, r.Host, r.Port)
}

// NewRabbitMQConn dials the broker with exponential backoff. The connection
// is closed when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, ErrBrokerNotConfigured
	}
	connAddr := cfg.URL()

	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(connAddr)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("host", cfg.Host).Msg("failed to connect to RabbitMQ, retrying")
			return nil, err
		}

		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	maxRetries := uint(5)
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(maxRetries))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("host", cfg.Host).Msg("giving up on RabbitMQ")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("host", cfg.Host).Msg("connected to RabbitMQ")
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close RabbitMQ connection")
		}
		zerolog.Ctx(ctx).Info().Msg("RabbitMQ connection closed")
	}()

	return conn, nil
}
