// Package notifier доставляет события прогресса (миссии и значки).
// Ошибки уведомлений никогда не влияют на результат основной операции.
package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rajivgeraev/reloop-api/internal/logger"
)

// EventKind - тип события прогресса
type EventKind string

const (
	EventListItem      EventKind = "list_item"
	EventCompleteTrade EventKind = "complete_trade"
	EventSendMessage   EventKind = "send_message"
)

// ProgressNotifier получает события прогресса пользователя
type ProgressNotifier interface {
	NotifyProgress(ctx context.Context, userID string, kind EventKind, count int) error
}

// Nop ничего не делает
type Nop struct{}

func (Nop) NotifyProgress(context.Context, string, EventKind, int) error { return nil }

// Async отправляет события в фоне со своим таймаутом и только логирует ошибки
type Async struct {
	next    ProgressNotifier
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewAsync оборачивает notifier в fire-and-forget доставку
func NewAsync(next ProgressNotifier, timeout time.Duration, log *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout, log: log}
}

func (a *Async) NotifyProgress(ctx context.Context, userID string, kind EventKind, count int) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// Запрос может завершиться раньше уведомления
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.NotifyProgress(ctx, userID, kind, count); err != nil {
			a.log.Warn("ошибка уведомления о прогрессе",
				slog.String("user_id", userID),
				slog.String("kind", string(kind)),
				logger.Err(err),
			)
		}
	}()
	return nil
}

// Wait дожидается отправки всех начатых уведомлений
func (a *Async) Wait() {
	a.wg.Wait()
}
