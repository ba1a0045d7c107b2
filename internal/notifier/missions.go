package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rajivgeraev/reloop-api/internal/repository"
)

// Badge - значок, выдаваемый при достижении порога по типу события
type Badge struct {
	Name      string
	Kind      EventKind
	Threshold int
	Reward    int64
}

// DefaultBadges - набор значков по умолчанию
var DefaultBadges = []Badge{
	{Name: "first_listing", Kind: EventListItem, Threshold: 1, Reward: 10},
	{Name: "seasoned_seller", Kind: EventListItem, Threshold: 10, Reward: 30},
	{Name: "first_trade", Kind: EventCompleteTrade, Threshold: 1, Reward: 20},
	{Name: "eco_hero", Kind: EventCompleteTrade, Threshold: 5, Reward: 50},
	{Name: "chatterbox", Kind: EventSendMessage, Threshold: 25, Reward: 10},
}

// Granter начисляет монеты внутри транзакции вызывающего
type Granter interface {
	GrantTx(ctx context.Context, tx repository.Repository, userID string, amount int64, reason string) (int64, error)
	Remember(userID string, balance int64)
}

// MissionRecorder учитывает прогресс и выдает значки с наградой.
// Счетчик, значок и начисление фиксируются одной транзакцией.
type MissionRecorder struct {
	store   repository.Store
	granter Granter
	badges  []Badge
	log     *slog.Logger
}

// NewMissionRecorder создает MissionRecorder; badges == nil означает DefaultBadges
func NewMissionRecorder(store repository.Store, granter Granter, badges []Badge, log *slog.Logger) *MissionRecorder {
	if badges == nil {
		badges = DefaultBadges
	}
	return &MissionRecorder{store: store, granter: granter, badges: badges, log: log}
}

func (m *MissionRecorder) NotifyProgress(ctx context.Context, userID string, kind EventKind, count int) error {
	var awarded []Badge
	var balance int64
	granted := false

	err := m.store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		// попытка могла повториться после конфликта
		awarded, granted = awarded[:0], false

		total, err := tx.IncrementMission(ctx, userID, string(kind), count)
		if err != nil {
			return fmt.Errorf("учет миссии %s: %w", kind, err)
		}

		for _, b := range m.badges {
			if b.Kind != kind || total < b.Threshold {
				continue
			}
			ok, err := tx.AwardBadge(ctx, userID, b.Name)
			if err != nil {
				return fmt.Errorf("выдача значка %s: %w", b.Name, err)
			}
			if !ok {
				continue
			}
			awarded = append(awarded, b)

			if b.Reward > 0 && m.granter != nil {
				balance, err = m.granter.GrantTx(ctx, tx, userID, b.Reward, "badge:"+b.Name)
				if err != nil {
					return fmt.Errorf("награда за значок %s: %w", b.Name, err)
				}
				granted = true
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if granted {
		m.granter.Remember(userID, balance)
	}
	for _, b := range awarded {
		m.log.Info("выдан значок",
			slog.String("user_id", userID),
			slog.String("badge", b.Name),
			slog.Int64("reward", b.Reward),
		)
	}
	return nil
}
