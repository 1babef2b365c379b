package health

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Postgres pings the database.
func Postgres(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "postgres", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "postgres", Healthy: true}
	}
}

// Redis pings the blocklist store.
func Redis(client *redis.Client) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return Status{Name: "redis", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "redis", Healthy: true}
	}
}

// Kafka dials the first reachable broker.
func Kafka(brokers []string) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()

		var lastErr error
		for _, addr := range brokers {
			conn, err := kafkago.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			_ = conn.Close()
			return Status{Name: "kafka", Healthy: true, Detail: addr}
		}
		detail := "no brokers configured"
		if lastErr != nil {
			detail = lastErr.Error()
		}
		return Status{Name: "kafka", Healthy: false, Detail: detail}
	}
}
