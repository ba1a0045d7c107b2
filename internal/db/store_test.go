package db

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

var testStore *Store

// Интеграционные тесты запускаются только с RELOOP_PG_TESTS=1 (нужен docker)
func TestMain(m *testing.M) {
	if os.Getenv("RELOOP_PG_TESTS") != "1" {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reloop"),
		postgres.WithUsername("reloop"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	if err := Migrate(connStr); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	testStore = NewStore(pool, 8, logger.Discard())

	code := m.Run()

	pool.Close()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func requireStore(t *testing.T) *Store {
	t.Helper()
	if testStore == nil {
		t.Skip("RELOOP_PG_TESTS не задан")
	}
	t.Cleanup(func() {
		_, err := testStore.pool.Exec(context.Background(), `
			TRUNCATE TABLE user_badges, mission_progress, ledger_entries, messages,
				conversations, trades, listings, users CASCADE`)
		require.NoError(t, err)
	})
	return testStore
}

func seedUser(t *testing.T, s *Store, id string, coins int64) {
	t.Helper()
	created, err := s.EnsureUser(context.Background(), &models.User{ID: id, Name: id, Coins: coins})
	require.NoError(t, err)
	require.True(t, created)
}

func seedListing(t *testing.T, s *Store, sellerID string, price int64) *models.Listing {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	l := &models.Listing{
		ID: uuid.NewString(), SellerID: sellerID, Title: "Лампа", Category: "home", Condition: "good",
		Price: price, Images: []string{"a.jpg", "b.jpg"}, Status: models.ListingAvailable,
		CreatedAt: now, ExpiresAt: now.Add(models.ListingTTL),
	}
	require.NoError(t, s.CreateListing(context.Background(), l))
	return l
}

func TestEnsureUser_DoesNotOverwrite(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "u1", 100)

	again := &models.User{ID: "u1", Name: "другое имя", Coins: 5}
	created, err := s.EnsureUser(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(100), again.Coins)
	assert.Equal(t, "u1", again.Name)
}

func TestListingRoundTrip(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "seller", 0)
	l := seedListing(t, s, "seller", 40)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got.Images)
	assert.Equal(t, models.ListingAvailable, got.Status)

	_, err = s.GetListing(ctx, uuid.NewString())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	list, err := s.ListListings(ctx, models.ListingFilter{Status: models.ListingAvailable, Category: "home", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "buyer", 100)

	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		u, err := tx.GetUserForUpdate(ctx, "buyer")
		require.NoError(t, err)
		u.Coins = 1
		u.CO2Saved = decimal.RequireFromString("2.5")
		require.NoError(t, tx.UpdateUserStats(ctx, u))
		return apperrors.ErrInsufficientFunds(1, 2)
	})
	assert.Equal(t, apperrors.CodeInsufficientFunds, apperrors.CodeOf(err))

	u, err := s.GetUser(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.Coins)
	assert.True(t, u.CO2Saved.IsZero())
}

func TestWithTx_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "buyer", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
				u, err := tx.GetUserForUpdate(ctx, "buyer")
				if err != nil {
					return err
				}
				if u.Coins < 40 {
					return apperrors.ErrInsufficientFunds(u.Coins, 40)
				}
				u.Coins -= 40
				return tx.UpdateUserStats(ctx, u)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	u, err := s.GetUser(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, int64(20), u.Coins)
}

func TestConversationsAndMessages(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "b", 0)
	seedUser(t, s, "s", 0)
	l := seedListing(t, s, "s", 10)

	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &models.Conversation{
		ID: uuid.NewString(), Participants: []string{"b", "s"}, BuyerID: "b", SellerID: "s",
		ListingID: l.ID, LastMessageAt: now, CreatedAt: now,
	}
	require.NoError(t, s.CreateConversation(ctx, c))

	require.NoError(t, s.InsertMessage(ctx, &models.Message{ID: "01B", ConversationID: c.ID, SenderID: "s", Text: "второе", CreatedAt: now}))
	require.NoError(t, s.InsertMessage(ctx, &models.Message{ID: "01A", ConversationID: c.ID, SenderID: "b", Text: "первое", CreatedAt: now}))
	require.NoError(t, s.TouchConversation(ctx, c.ID, "второе", now))

	msgs, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "01A", msgs[0].ID)

	convs, err := s.ListConversationsByParticipant(ctx, "s")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, l.ID, convs[0].ListingID)
	assert.Equal(t, "второе", convs[0].LastMessage)
}

func TestMissionsAndBadges(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	seedUser(t, s, "u", 0)

	total, err := s.IncrementMission(ctx, "u", "list_item", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	total, err = s.IncrementMission(ctx, "u", "list_item", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	awarded, err := s.AwardBadge(ctx, "u", "first_listing")
	require.NoError(t, err)
	assert.True(t, awarded)
	awarded, err = s.AwardBadge(ctx, "u", "first_listing")
	require.NoError(t, err)
	assert.False(t, awarded)

	badges, err := s.ListBadges(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"first_listing"}, badges)
}
