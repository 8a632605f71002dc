package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/envutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// Service holds both the GORM handle used by the session/message repos
// (spec §4.7, C9) and a raw pgx pool used where GORM's row-at-a-time query
// builder can't express what's needed: the pgvector cosine search (C2) and
// the atomic quota upsert (C10).
type Service struct {
	gdb  *gorm.DB
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewService(ctx context.Context, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")

	host := envutil.GetEnv("POSTGRES_HOST", "localhost", logg)
	port := envutil.GetEnv("POSTGRES_PORT", "5432", logg)
	user := envutil.GetEnv("POSTGRES_USER", "postgres", logg)
	password := envutil.GetEnv("POSTGRES_PASSWORD", "", logg)
	name := envutil.GetEnv("POSTGRES_NAME", "uniroad", logg)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect gorm: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Service{gdb: gdb, pool: pool, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB       { return s.gdb }
func (s *Service) Pool() *pgxpool.Pool { return s.pool }

func (s *Service) Close() {
	s.pool.Close()
	if sqlDB, err := s.gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
