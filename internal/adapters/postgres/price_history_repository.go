package postgres_adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresPriceHistoryRepository - чтение истории цен
type PostgresPriceHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPriceHistoryRepository(pool *pgxpool.Pool) (*PostgresPriceHistoryRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresPriceHistoryRepository{pool: pool}, nil
}

func (r *PostgresPriceHistoryRepository) LatestPrice(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	query := `SELECT price FROM price_history WHERE product_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`

	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, query, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		contextkeys.LoggerFromContext(ctx).Error("Failed to get latest price", err, port.Fields{
			"component":  "PostgresPriceHistoryRepository",
			"method":     "LatestPrice",
			"product_id": productID,
		})
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	return &price, nil
}

// History возвращает последние limit записей, новые первыми
func (r *PostgresPriceHistoryRepository) History(ctx context.Context, productID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "PostgresPriceHistoryRepository",
		"method":     "History",
		"product_id": productID,
	})
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT product_id, price, recorded_at FROM price_history
		WHERE product_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, productID, limit)
	if err != nil {
		repoLogger.Error("Failed to query price history", err, port.Fields{"query": query})
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var e domain.PriceHistoryEntry
		if err := rows.Scan(&e.ProductID, &e.Price, &e.RecordedAt); err != nil {
			repoLogger.Error("Failed to scan price history row", err, nil)
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during price history iteration: %w", err)
	}
	return entries, nil
}

// Statistics агрегирует историю одним запросом вместе с текущей ценой товара
func (r *PostgresPriceHistoryRepository) Statistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error) {
	query := `SELECT p.current_price,
			MIN(h.price), MAX(h.price), AVG(h.price), COUNT(h.id),
			(SELECT price FROM price_history WHERE product_id = p.id ORDER BY recorded_at ASC, id ASC LIMIT 1)
		FROM products p
		LEFT JOIN price_history h ON h.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id, p.current_price`

	var (
		current                     decimal.Decimal
		lowest, highest, avg, first decimal.NullDecimal
		total                       int64
	)
	err := r.pool.QueryRow(ctx, query, productID).Scan(&current, &lowest, &highest, &avg, &total, &first)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		contextkeys.LoggerFromContext(ctx).Error("Failed to compute price statistics", err, port.Fields{
			"component":  "PostgresPriceHistoryRepository",
			"method":     "Statistics",
			"product_id": productID,
		})
		return nil, fmt.Errorf("failed to compute price statistics: %w", err)
	}

	agg := domain.PriceAggregates{Total: total}
	if total > 0 {
		agg.Lowest = lowest.Decimal
		agg.Highest = highest.Decimal
		agg.Average = avg.Decimal
		if first.Valid {
			agg.First = &first.Decimal
		}
	}
	stats := domain.NewPriceStatistics(productID, current, agg)
	return &stats, nil
}

// CREATE TABLE price_history (
//     id          BIGSERIAL PRIMARY KEY,
//     product_id  BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
//     price       NUMERIC(12,2) NOT NULL,
//     recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX idx_price_history_product ON price_history (product_id, recorded_at DESC);
