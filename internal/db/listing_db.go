package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const listingColumns = `id, seller_id, title, description, category, condition, price, images, status, created_at, expires_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Category, &l.Condition,
		&l.Price, &l.Images, &l.Status, &l.CreatedAt, &l.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *Queries) CreateListing(ctx context.Context, l *models.Listing) error {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO listings (id, seller_id, title, description, category, condition, price, images, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.SellerID, l.Title, l.Description, l.Category, l.Condition,
		l.Price, images, l.Status, l.CreatedAt, l.ExpiresAt)
	return errors.Wrap(err, "db.CreateListing")
}

func (q *Queries) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	l, err := scanListing(q.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetListing", apperrors.ErrListingNotFound)
	}
	return l, nil
}

// GetListingForUpdate блокирует объявление до конца транзакции
func (q *Queries) GetListingForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	l, err := scanListing(q.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetListingForUpdate", apperrors.ErrListingNotFound)
	}
	return l, nil
}

func (q *Queries) GetListings(ctx context.Context, ids []string) (map[string]*models.Listing, error) {
	res := make(map[string]*models.Listing, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := q.db.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetListings")
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.GetListings: scan")
		}
		res[l.ID] = l
	}
	return res, errors.Wrap(rows.Err(), "db.GetListings: rows")
}

// ListListings возвращает объявления по фильтру, новые первыми
func (q *Queries) ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	var conds []string
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		conds = append(conds, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListListings")
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.ListListings: scan")
		}
		listings = append(listings, *l)
	}
	return listings, errors.Wrap(rows.Err(), "db.ListListings: rows")
}

func (q *Queries) UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus) error {
	tag, err := q.db.Exec(ctx, `UPDATE listings SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return errors.Wrap(err, "db.UpdateListingStatus")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrListingNotFound
	}
	return nil
}
