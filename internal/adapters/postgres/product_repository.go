package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `id, user_id, name, url, current_price, target_price, check_frequency,
	last_checked, is_available, unavailable_since`

// PostgresProductRepository - реализация port.ProductRepositoryPort для PostgreSQL.
// Таблицей products владеет сервис товаров, здесь обновляются только поля проверки.
type PostgresProductRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresProductRepository(pool *pgxpool.Pool) (*PostgresProductRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresProductRepository{pool: pool}, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.URL, &p.CurrentPrice, &p.TargetPrice, &p.CheckFrequencyHours,
		&p.LastCheckedAt, &p.IsAvailable, &p.UnavailableSince,
	)
	return p, err
}

// FindDue выбирает товары корзины, которые пора проверить, в порядке id
func (r *PostgresProductRepository) FindDue(ctx context.Context, bucketHours int, dueBefore time.Time) ([]domain.Product, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":    "PostgresProductRepository",
		"method":       "FindDue",
		"bucket_hours": bucketHours,
	})

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE check_frequency = $1 AND (last_checked IS NULL OR last_checked < $2)
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, bucketHours, dueBefore.UTC())
	if err != nil {
		repoLogger.Error("Failed to query due products", err, port.Fields{"query": query})
		return nil, fmt.Errorf("failed to query due products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			repoLogger.Error("Failed to scan product row", err, nil)
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		repoLogger.Error("Error during products iteration", err, nil)
		return nil, fmt.Errorf("error during products iteration: %w", err)
	}

	repoLogger.Debug("Due products selected.", port.Fields{"count": len(products)})
	return products, nil
}

func (r *PostgresProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		contextkeys.LoggerFromContext(ctx).Error("Failed to get product", err, port.Fields{
			"component":  "PostgresProductRepository",
			"method":     "FindByID",
			"product_id": id,
		})
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// SaveCheck обновляет товар и, при необходимости, добавляет запись истории в одной транзакции.
// Время записи истории берется из часов БД.
func (r *PostgresProductRepository) SaveCheck(ctx context.Context, product *domain.Product, newHistoryPrice *decimal.Decimal) error {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "PostgresProductRepository",
		"method":     "SaveCheck",
		"product_id": product.ID,
	})

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		repoLogger.Error("Failed to begin transaction", err, nil)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE products
		SET current_price = $2, last_checked = $3, is_available = $4, unavailable_since = $5
		WHERE id = $1`,
		product.ID, product.CurrentPrice, product.LastCheckedAt, product.IsAvailable, product.UnavailableSince,
	)
	if newHistoryPrice != nil {
		batch.Queue(`INSERT INTO price_history (product_id, price, recorded_at) VALUES ($1, $2, now())`,
			product.ID, *newHistoryPrice,
		)
	}

	br := tx.SendBatch(ctx, batch)
	tag, err := br.Exec()
	if err != nil {
		_ = br.Close()
		repoLogger.Error("Failed to update product", err, nil)
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = br.Close()
		return domain.ErrProductNotFound
	}
	if newHistoryPrice != nil {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			repoLogger.Error("Failed to insert price history", err, nil)
			return fmt.Errorf("failed to insert price history: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		repoLogger.Error("Failed to commit transaction", err, nil)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	repoLogger.Debug("Product check saved.", port.Fields{"history_appended": newHistoryPrice != nil})
	return nil
}

// FindAlertRecipient возвращает email владельца и его настройки.
// Без строки в user_preferences используются настройки по умолчанию.
func (r *PostgresProductRepository) FindAlertRecipient(ctx context.Context, productID int64) (*domain.AlertRecipient, error) {
	query := `SELECT u.email,
			up.email_notifications, up.webhook_notifications, up.webhook_url, up.webhook_type,
			up.notification_frequency, up.price_drop_alerts, up.availability_alerts
		FROM products p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN user_preferences up ON up.user_id = u.id
		WHERE p.id = $1`

	var (
		email                               string
		emailOn, webhookOn, dropOn, availOn *bool
		webhookURL, webhookType, frequency  *string
	)
	err := r.pool.QueryRow(ctx, query, productID).Scan(
		&email, &emailOn, &webhookOn, &webhookURL, &webhookType, &frequency, &dropOn, &availOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		contextkeys.LoggerFromContext(ctx).Error("Failed to get alert recipient", err, port.Fields{
			"component":  "PostgresProductRepository",
			"method":     "FindAlertRecipient",
			"product_id": productID,
		})
		return nil, fmt.Errorf("failed to get alert recipient: %w", err)
	}

	prefs := domain.DefaultNotificationPreferences()
	// все колонки NULL, значит строки настроек нет
	if emailOn != nil {
		prefs.EmailNotifications = *emailOn
		prefs.WebhookNotifications = derefBool(webhookOn)
		prefs.WebhookURL = webhookURL
		prefs.WebhookType = webhookType
		if frequency != nil {
			prefs.NotificationFrequency = *frequency
		}
		prefs.PriceDropAlerts = derefBool(dropOn)
		prefs.AvailabilityAlerts = derefBool(availOn)
	}

	return &domain.AlertRecipient{Email: email, Preferences: prefs}, nil
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

// CREATE TABLE products (
//     id                BIGSERIAL PRIMARY KEY,
//     user_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
//     name              TEXT NOT NULL,
//     url               TEXT NOT NULL,
//     image             TEXT,
//     current_price     NUMERIC(12,2) NOT NULL,
//     target_price      NUMERIC(12,2) NOT NULL,
//     check_frequency   INT NOT NULL DEFAULT 24 CHECK (check_frequency IN (6, 12, 24)),
//     last_checked      TIMESTAMPTZ,
//     is_available      BOOLEAN NOT NULL DEFAULT TRUE,
//     unavailable_since TIMESTAMPTZ,
//     created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX idx_products_due ON products (check_frequency, last_checked);
