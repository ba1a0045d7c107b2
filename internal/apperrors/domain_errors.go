package apperrors

var (
	// Доменные ошибки - используются в сервисах и репозиториях
	ErrNotAuthenticated   = Unauthenticated("пользователь не авторизован")
	ErrUnknownUser        = Unauthenticated("пользователь не найден")
	ErrSelfTrade          = New(CodeSelfTrade, "нельзя обменяться с самим собой")
	ErrListingUnavailable = New(CodeListingUnavailable, "объявление недоступно для обмена")
	ErrListingNotFound    = NotFound("объявление не найдено")
	ErrTradeNotFound      = NotFound("обмен не найден")
	ErrUserNotFound       = NotFound("пользователь не найден")
	ErrChatNotFound       = NotFound("чат не найден")
	ErrTradeNotPending    = InvalidState("обмен уже завершен")
	ErrListingNotPending  = InvalidState("объявление не ожидает обмена")
	ErrTxConflict         = New(CodeTxConflict, "транзакция не выполнена из-за конкурентных изменений")
	ErrNotParticipant     = Forbidden("у вас нет доступа к этому чату")
	ErrEmptyMessage       = InvalidArg("текст сообщения не может быть пустым")
)

// ErrInsufficientFunds возвращает ошибку нехватки монет с деталями баланса
func ErrInsufficientFunds(has, needed int64) error {
	return Newf(CodeInsufficientFunds, "недостаточно монет (есть: %d, нужно: %d)", has, needed)
}
