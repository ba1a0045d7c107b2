package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const userColumns = `id, name, avatar_url, campus, coins, xp, items_traded, co2_saved::text, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var co2 string

	err := row.Scan(
		&user.ID, &user.Name, &user.AvatarURL, &user.Campus,
		&user.Coins, &user.XP, &user.ItemsTraded, &co2,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.CO2Saved, err = decimal.NewFromString(co2)
	if err != nil {
		return nil, errors.Wrap(err, "db.scanUser: co2_saved")
	}
	return &user, nil
}

// EnsureUser создает пользователя при первом входе; существующая запись не перезаписывается
func (q *Queries) EnsureUser(ctx context.Context, user *models.User) (bool, error) {
	created, err := scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (id, name, avatar_url, campus, coins)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+userColumns,
		user.ID, user.Name, user.AvatarURL, user.Campus, user.Coins))
	if err == nil {
		*user = *created
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, errors.Wrap(err, "db.EnsureUser")
	}

	existing, err := q.GetUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	*user = *existing
	return false, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetUser", apperrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUserForUpdate читает пользователя с блокировкой строки до конца транзакции
func (q *Queries) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetUserForUpdate", apperrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUsers - пакетное чтение; отсутствующие id в результат не попадают
func (q *Queries) GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	res := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetUsers")
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.GetUsers: scan")
		}
		res[user.ID] = user
	}
	return res, errors.Wrap(rows.Err(), "db.GetUsers: rows")
}

func (q *Queries) UpdateUserStats(ctx context.Context, user *models.User) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users
		SET coins = $1, xp = $2, items_traded = $3, co2_saved = $4::numeric, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
	`, user.Coins, user.XP, user.ItemsTraded, user.CO2Saved.String(), user.ID)
	if err != nil {
		return errors.Wrap(err, "db.UpdateUserStats")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// AddCoins атомарно изменяет баланс и опыт, возвращает новый баланс
func (q *Queries) AddCoins(ctx context.Context, userID string, coins, xp int64) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, `
		UPDATE users
		SET coins = coins + $1, xp = xp + $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING coins
	`, coins, xp, userID).Scan(&balance)
	if err != nil {
		return 0, wrapErr(err, "db.AddCoins", apperrors.ErrUserNotFound)
	}
	return balance, nil
}

func (q *Queries) Leaderboard(ctx context.Context, campus string, limit int) ([]models.User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 = '' OR campus = $1)
		ORDER BY xp DESC, id
		LIMIT $2
	`, strings.TrimSpace(campus), limit)
	if err != nil {
		return nil, errors.Wrap(err, "db.Leaderboard")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.Leaderboard: scan")
		}
		users = append(users, *user)
	}
	return users, errors.Wrap(rows.Err(), "db.Leaderboard: rows")
}

func (q *Queries) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, balance_after, reason, trade_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.Amount, entry.BalanceAfter, entry.Reason, entry.TradeID).Scan(&entry.CreatedAt)
	return errors.Wrap(err, "db.AppendLedgerEntry")
}

func (q *Queries) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, amount, balance_after, reason, COALESCE(trade_id, ''), created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListLedgerEntries")
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.BalanceAfter, &e.Reason, &e.TradeID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "db.ListLedgerEntries: scan")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "db.ListLedgerEntries: rows")
}

// IncrementMission увеличивает счетчик миссии и возвращает итоговое значение
func (q *Queries) IncrementMission(ctx context.Context, userID, kind string, count int) (int, error) {
	var total int
	err := q.db.QueryRow(ctx, `
		INSERT INTO mission_progress (user_id, kind, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, kind)
		DO UPDATE SET count = mission_progress.count + EXCLUDED.count, updated_at = CURRENT_TIMESTAMP
		RETURNING count
	`, userID, kind, count).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "db.IncrementMission")
	}
	return total, nil
}

func (q *Queries) AwardBadge(ctx context.Context, userID, badge string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge) VALUES ($1, $2)
		ON CONFLICT (user_id, badge) DO NOTHING
	`, userID, badge)
	if err != nil {
		return false, errors.Wrap(err, "db.AwardBadge")
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) ListBadges(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT badge FROM user_badges WHERE user_id = $1 ORDER BY awarded_at, badge`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListBadges")
	}
	badges, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return badges, errors.Wrap(err, "db.ListBadges: rows")
}
