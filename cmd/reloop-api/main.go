package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	tokens "github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/config"
	"github.com/rajivgeraev/reloop-api/internal/db"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
	"github.com/rajivgeraev/reloop-api/internal/notifier"
	"github.com/rajivgeraev/reloop-api/internal/services/auth"
	"github.com/rajivgeraev/reloop-api/internal/services/chat"
	"github.com/rajivgeraev/reloop-api/internal/services/cloudinary"
	"github.com/rajivgeraev/reloop-api/internal/services/ledger"
	"github.com/rajivgeraev/reloop-api/internal/services/listing"
	"github.com/rajivgeraev/reloop-api/internal/services/trade"
	"github.com/rajivgeraev/reloop-api/internal/services/user"
	"github.com/rajivgeraev/reloop-api/internal/websocket"
)

// Время на обработку уведомления о прогрессе вне запроса
const notifyTimeout = 5 * time.Second

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("❌ ошибка конфигурации", logger.Err(err))
		os.Exit(1)
	}

	log := logger.New(cfg.AppEnv)
	ctx := context.Background()

	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			log.Error("❌ ошибка миграций", logger.Err(err))
			os.Exit(1)
		}
		log.Info("миграции применены")
	}

	// Инициализируем базу данных
	pool, err := db.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("❌ ошибка при инициализации базы данных", logger.Err(err))
		os.Exit(1)
	}
	defer pool.Close()

	store := db.NewStore(pool, cfg.TxMaxAttempts, log)

	verifier, jwtService, err := newVerifier(ctx, cfg)
	if err != nil {
		log.Error("❌ ошибка инициализации аутентификации", logger.Err(err))
		os.Exit(1)
	}

	// Создаём сервисы
	userService := user.NewUserService(store, cfg.StartingCoins, log)
	ledgerService := ledger.NewLedgerService(store, log)
	progress := notifier.NewAsync(
		notifier.NewMissionRecorder(store, ledgerService, nil, log),
		notifyTimeout,
		log,
	)
	listingService := listing.NewListingService(store, userService, progress, log)
	chatService := chat.NewChatService(store, userService, chat.NewBroker(log), progress, log)
	tradeService := trade.NewTradeService(store, ledgerService, chatService, progress, log)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg.CloudinaryConfig)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Reloop API",
		ErrorHandler: middleware.ErrorHandler(log),
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	authMiddleware := middleware.AuthMiddleware(verifier, userService, log)

	// Регистрируем маршруты
	if jwtService != nil {
		auth.NewAuthService(cfg.AuthConfig.TelegramBotToken, jwtService, userService, log).SetupRoutes(app)
	}
	userService.SetupRoutes(app, authMiddleware)
	ledgerService.SetupRoutes(app, authMiddleware)
	listingService.SetupRoutes(app, authMiddleware)
	tradeService.SetupRoutes(app, authMiddleware)
	chatService.SetupRoutes(app, authMiddleware)
	cloudinaryService.SetupRoutes(app, authMiddleware)

	wsServer := websocket.NewServer(":"+cfg.ServerConfig.WSPort, verifier, chatService, log)

	errCh := make(chan error, 2)
	go func() {
		errCh <- wsServer.ListenAndServe()
	}()
	go func() {
		log.Info("✅ Reloop API запущен", slog.String("port", cfg.ServerConfig.Port))
		errCh <- app.Listen(":"+cfg.ServerConfig.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("получен сигнал остановки")
	case err := <-errCh:
		if err != nil {
			log.Error("❌ сервер остановлен с ошибкой", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ошибка остановки websocket сервера", logger.Err(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("ошибка остановки HTTP сервера", logger.Err(err))
	}
	// дожидаемся уведомлений, запущенных обработанными запросами
	progress.Wait()
	log.Info("сервер остановлен")
}

// newVerifier выбирает проверку токенов по AUTH_PROVIDER. JWTService
// возвращается только для jwt: он же выдает токены при входе через Telegram.
func newVerifier(ctx context.Context, cfg *config.Config) (tokens.TokenVerifier, *tokens.JWTService, error) {
	switch cfg.AuthConfig.Provider {
	case config.AuthProviderFirebase:
		v, err := tokens.NewFirebaseVerifier(ctx, cfg.FirebaseConfig.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	default:
		jwtService := tokens.NewJWTService(cfg.AuthConfig.JWTSecret)
		return jwtService, jwtService, nil
	}
}
