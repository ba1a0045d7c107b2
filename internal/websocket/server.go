package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

// Streamer отдает живой поток сообщений переписки участнику
type Streamer interface {
	StreamMessages(ctx context.Context, conversationID, userID string) (<-chan models.Message, error)
}

// Server обслуживает /ws/chats/{id} на отдельном порту
type Server struct {
	verifier auth.TokenVerifier
	streamer Streamer
	manager  *Manager
	upgrader websocket.Upgrader
	http     *http.Server
	log      *slog.Logger
}

// NewServer создает новый экземпляр Server
func NewServer(addr string, verifier auth.TokenVerifier, streamer Streamer, log *slog.Logger) *Server {
	s := &Server{
		verifier: verifier,
		streamer: streamer,
		manager:  NewManager(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// клиенты - мобильные WebView с произвольным Origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler возвращает маршрутизатор websocket-сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chats/{id}", s.handleChatStream)
	return mux
}

// Manager возвращает учет активных соединений
func (s *Server) Manager() *Manager {
	return s.manager
}

// ListenAndServe запускает сервер; после Shutdown возвращает nil
func (s *Server) ListenAndServe() error {
	s.log.Info("websocket сервер запущен", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown закрывает активные потоки и останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	// перехваченные соединения http.Server не отслеживает
	s.manager.Shutdown()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		s.writeError(w, apperrors.Unauthenticated("отсутствует токен"))
		return
	}

	identity, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		s.log.Debug("токен websocket отклонен", logger.Err(err))
		s.writeError(w, apperrors.Unauthenticated("недействительный или просроченный токен"))
		return
	}

	conversationID := r.PathValue("id")
	ctx, cancel := context.WithCancel(r.Context())
	stream, err := s.streamer.StreamMessages(ctx, conversationID, identity.UserID)
	if err != nil {
		cancel()
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		cancel()
		s.log.Debug("ошибка upgrade websocket", logger.Err(err))
		return
	}

	NewClient(identity.UserID, conversationID, conn, stream, cancel, s.manager, s.log).Run()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := middleware.HTTPStatus(err)
	body := map[string]any{"error": "внутренняя ошибка сервера", "code": apperrors.CodeInternal}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != apperrors.CodeInternal {
		body = map[string]any{"error": appErr.Message, "code": appErr.Code}
	} else {
		s.log.Error("ошибка websocket", logger.Err(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
