package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const conversationColumns = `id, participants, buyer_id, seller_id, COALESCE(listing_id, ''), last_message, last_message_at, created_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.Participants, &c.BuyerID, &c.SellerID, &c.ListingID,
		&c.LastMessage, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *Queries) CreateConversation(ctx context.Context, c *models.Conversation) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO conversations (id, participants, buyer_id, seller_id, listing_id, last_message, last_message_at, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, c.ID, c.Participants, c.BuyerID, c.SellerID, c.ListingID, c.LastMessage, c.LastMessageAt, c.CreatedAt)
	return errors.Wrap(err, "db.CreateConversation")
}

func (q *Queries) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	c, err := scanConversation(q.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "db.GetConversation", apperrors.ErrChatNotFound)
	}
	return c, nil
}

// ListConversationsByParticipant использует GIN-индекс по participants
func (q *Queries) ListConversationsByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participants @> ARRAY[$1]::text[]
		ORDER BY last_message_at DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListConversationsByParticipant")
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.ListConversationsByParticipant: scan")
		}
		convs = append(convs, *c)
	}
	return convs, errors.Wrap(rows.Err(), "db.ListConversationsByParticipant: rows")
}

func (q *Queries) InsertMessage(ctx context.Context, m *models.Message) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ConversationID, m.SenderID, m.Text, m.IsSystem, m.CreatedAt)
	return errors.Wrap(err, "db.InsertMessage")
}

func (q *Queries) TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE conversations SET last_message = $1, last_message_at = $2 WHERE id = $3
	`, lastMessage, at, id)
	if err != nil {
		return errors.Wrap(err, "db.TouchConversation")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrChatNotFound
	}
	return nil
}

// ListMessages возвращает сообщения по возрастанию времени; id (ULID) разрешает равенство
func (q *Queries) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, text, is_system, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "db.ListMessages")
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.IsSystem, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "db.ListMessages: scan")
		}
		msgs = append(msgs, m)
	}
	return msgs, errors.Wrap(rows.Err(), "db.ListMessages: rows")
}
