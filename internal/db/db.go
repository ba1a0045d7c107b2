package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/reloop-api/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewPool создает пул соединений с базой данных и проверяет подключение
func NewPool(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	log.Info("подключение к базе данных",
		slog.String("host", cfg.DatabaseConfig.Host),
		slog.String("database", cfg.DatabaseConfig.Name),
	)

	// Создаем контекст с таймаутом для подключения
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе URL базы данных: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула соединений: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения: %w", err)
	}

	log.Info("✅ успешное подключение к базе данных")
	return pool, nil
}

// NewMigrator создает мигратор. Пустой sourceURL означает встроенные миграции.
func NewMigrator(databaseURL, sourceURL string) (*migrate.Migrate, error) {
	if sourceURL != "" {
		m, err := migrate.New(sourceURL, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("ошибка при инициализации миграций: %w", err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при инициализации миграций: %w", err)
	}
	return m, nil
}

// Migrate применяет встроенные миграции. Отсутствие изменений ошибкой не считается.
func Migrate(databaseURL string) error {
	m, err := NewMigrator(databaseURL, "")
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка при применении миграций: %w", err)
	}
	return nil
}
