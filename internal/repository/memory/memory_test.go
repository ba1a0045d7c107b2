package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.EnsureUser(ctx, &models.User{ID: "u", Coins: 100})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		_, err := tx.AddCoins(ctx, "u", -30, 0)
		return err
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if _, err := tx.AddCoins(ctx, "u", -30, 0); err != nil {
			return err
		}
		return errors.New("откат")
	})
	require.Error(t, err)

	u, err := s.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(70), u.Coins)
}

func TestWithTx_RetriesThenConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.MaxAttempts = 3

	calls := 0
	s.Hook = func(attempt int) error {
		if attempt < 2 {
			return errors.New("конфликт")
		}
		return nil
	}
	err := s.WithTx(ctx, func(context.Context, repository.Repository) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	s.Hook = func(int) error { return errors.New("конфликт") }
	err = s.WithTx(ctx, func(context.Context, repository.Repository) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrTxConflict)
}

func TestAddCoins_NeverNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.EnsureUser(ctx, &models.User{ID: "u", Coins: 10})
	require.NoError(t, err)

	_, err = s.AddCoins(ctx, "u", -11, 0)
	assert.Equal(t, apperrors.CodeInsufficientFunds, apperrors.CodeOf(err))

	_, err = s.AddCoins(ctx, "missing", 1, 0)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestListListings_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.EnsureUser(ctx, &models.User{ID: "s"})
	require.NoError(t, err)

	base := time.Now()
	for i, cat := range []string{"books", "home", "books"} {
		require.NoError(t, s.CreateListing(ctx, &models.Listing{
			ID: string(rune('a' + i)), SellerID: "s", Category: cat, Price: 1,
			Status: models.ListingAvailable, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.UpdateListingStatus(ctx, "c", models.ListingSold))

	got, err := s.ListListings(ctx, models.ListingFilter{Status: models.ListingAvailable})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)

	got, err = s.ListListings(ctx, models.ListingFilter{Status: models.ListingAvailable, Category: "books"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestListMessages_OrderedByTimeThenID(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateConversation(ctx, &models.Conversation{ID: "c", Participants: []string{"a", "b"}}))

	now := time.Now()
	require.NoError(t, s.InsertMessage(ctx, &models.Message{ID: "2", ConversationID: "c", CreatedAt: now}))
	require.NoError(t, s.InsertMessage(ctx, &models.Message{ID: "1", ConversationID: "c", CreatedAt: now}))
	require.NoError(t, s.InsertMessage(ctx, &models.Message{ID: "0", ConversationID: "c", CreatedAt: now.Add(time.Second)}))

	msgs, err := s.ListMessages(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "0"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	err = s.InsertMessage(ctx, &models.Message{ID: "x", ConversationID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestMissionsAndBadges(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.IncrementMission(ctx, "u", "send_message", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.AwardBadge(ctx, "u", "chatty")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AwardBadge(ctx, "u", "chatty")
	require.NoError(t, err)
	assert.False(t, ok)
}
