package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const tradeColumns = `id, listing_id, buyer_id, seller_id, status, created_at, updated_at`

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	if err := row.Scan(&t.ID, &t.ListingID, &t.BuyerID, &t.SellerID, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *Queries) CreateTrade(ctx context.Context, t *models.Trade) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO trades (id, listing_id, buyer_id, seller_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.ListingID, t.BuyerID, t.SellerID, t.Status, t.CreatedAt, t.UpdatedAt)
	return errors.Wrap(err, "db.CreateTrade")
}

func (q *Queries) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	t, err := scanTrade(q.db.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetTrade", apperrors.ErrTradeNotFound)
	}
	return t, nil
}

// GetTradeForUpdate блокирует обмен до конца транзакции
func (q *Queries) GetTradeForUpdate(ctx context.Context, id string) (*models.Trade, error) {
	t, err := scanTrade(q.db.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetTradeForUpdate", apperrors.ErrTradeNotFound)
	}
	return t, nil
}

func (q *Queries) UpdateTradeStatus(ctx context.Context, id string, status models.TradeStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE trades SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, status, id)
	if err != nil {
		return errors.Wrap(err, "db.UpdateTradeStatus")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTradeNotFound
	}
	return nil
}

// ListUserTrades возвращает обмены, где пользователь покупатель или продавец
func (q *Queries) ListUserTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListUserTrades")
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.ListUserTrades: scan")
		}
		trades = append(trades, *t)
	}
	return trades, errors.Wrap(rows.Err(), "db.ListUserTrades: rows")
}
