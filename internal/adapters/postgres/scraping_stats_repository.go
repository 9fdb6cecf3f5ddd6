package postgres_adapter

import (
	"context"
	"fmt"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresScrapingStatsRepository пишет телеметрию парсинга
type PostgresScrapingStatsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresScrapingStatsRepository(pool *pgxpool.Pool) (*PostgresScrapingStatsRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresScrapingStatsRepository{pool: pool}, nil
}

func (r *PostgresScrapingStatsRepository) Record(ctx context.Context, stat domain.ScrapingStat) error {
	query := `INSERT INTO scraping_stats (site_name, product_id, status, response_time, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		string(stat.SiteTag), stat.ProductID, string(stat.Status), stat.ResponseTimeSeconds, stat.ErrorMessage, stat.CreatedAt,
	)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to record scraping stat", err, port.Fields{
			"component": "PostgresScrapingStatsRepository",
			"method":    "Record",
			"site":      stat.SiteTag,
			"status":    stat.Status,
		})
		return fmt.Errorf("failed to record scraping stat: %w", err)
	}
	return nil
}

// CREATE TABLE scraping_stats (
//     id            BIGSERIAL PRIMARY KEY,
//     site_name     TEXT NOT NULL,
//     product_id    BIGINT REFERENCES products(id) ON DELETE SET NULL,
//     status        TEXT NOT NULL CHECK (status IN ('success', 'failure', 'unavailable')),
//     response_time DOUBLE PRECISION,
//     error_message TEXT,
//     created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
// );
