package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Service is the slice of the connection pool the HTTP layer needs.
type Service interface {
	Health(ctx context.Context) map[string]string
	Close() error
}

type service struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgres opens a pooled connection through the pgx stdlib driver and pings it.
func NewPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func New(db *sql.DB, log *zap.Logger) Service {
	return &service{db: db, log: log}
}

// busyConnections is where the pool starts queueing; Health reports "degraded" past it.
const busyConnections = 40

// Health pings the database and reports pool statistics. Status is "up", "degraded"
// or "down".
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.log.Error("database ping failed", zap.Error(err))
		return map[string]string{"status": "down", "error": err.Error()}
	}

	pool := s.db.Stats()
	stats := map[string]string{
		"status":    "up",
		"open":      strconv.Itoa(pool.OpenConnections),
		"in_use":    strconv.Itoa(pool.InUse),
		"idle":      strconv.Itoa(pool.Idle),
		"waits":     strconv.FormatInt(pool.WaitCount, 10),
		"wait_time": pool.WaitDuration.String(),
	}
	if pool.InUse >= busyConnections {
		stats["status"] = "degraded"
	}
	return stats
}

func (s *service) Close() error {
	s.log.Info("closing database pool")
	return s.db.Close()
}
