package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

// Config структура конфигурации
type Config struct {
	AppEnv           string // local, dev, production
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig
	FirebaseConfig   FirebaseConfig
	AuthConfig       AuthConfig
	ServerConfig     ServerConfig
	TxMaxAttempts    int
	AutoMigrate      bool
	StartingCoins    int64
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	Folder       string
}

// FirebaseConfig содержит конфигурацию Firebase Auth
type FirebaseConfig struct {
	ProjectID string
}

// AuthConfig определяет провайдера токенов и секреты
type AuthConfig struct {
	Provider         string
	JWTSecret        string
	TelegramBotToken string
}

// ServerConfig содержит порты HTTP и websocket серверов
type ServerConfig struct {
	Port   string
	WSPort string
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "reloop_user"),
		Password: getEnv("PGPASSWORD", "reloop_pass"),
		Name:     getEnv("PGDATABASE", "reloop"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}

	// DATABASE_URL имеет приоритет над отдельными PG* переменными
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)
	}

	txAttempts, err := getEnvInt("TX_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if txAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS должен быть больше нуля: %d", txAttempts)
	}

	startingCoins, err := getEnvInt("STARTING_COINS", 100)
	if err != nil {
		return nil, err
	}
	if startingCoins < 0 {
		return nil, fmt.Errorf("STARTING_COINS не может быть отрицательным: %d", startingCoins)
	}

	autoMigrate, err := strconv.ParseBool(getEnv("AUTO_MIGRATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("некорректное значение AUTO_MIGRATE: %w", err)
	}

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "production"),
		DatabaseURL:    dbURL,
		DatabaseConfig: dbConfig,
		CloudinaryConfig: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "reloop_listings"),
			Folder:       getEnv("CLOUDINARY_FOLDER", "reloop/listings"),
		},
		FirebaseConfig: FirebaseConfig{
			ProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		},
		AuthConfig: AuthConfig{
			Provider:         getEnv("AUTH_PROVIDER", AuthProviderJWT),
			JWTSecret:        getEnv("JWT_SECRET", ""),
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		ServerConfig: ServerConfig{
			Port:   getEnv("PORT", "8080"),
			WSPort: getEnv("WS_PORT", "8081"),
		},
		TxMaxAttempts: txAttempts,
		AutoMigrate:   autoMigrate,
		StartingCoins: int64(startingCoins),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные переменные для выбранного провайдера
func (c *Config) Validate() error {
	switch c.AuthConfig.Provider {
	case AuthProviderJWT:
		if c.AuthConfig.JWTSecret == "" {
			return fmt.Errorf("не задан JWT_SECRET")
		}
		if c.AuthConfig.TelegramBotToken == "" {
			return fmt.Errorf("не задан TELEGRAM_BOT_TOKEN")
		}
	case AuthProviderFirebase:
		if c.FirebaseConfig.ProjectID == "" {
			return fmt.Errorf("не задан FIREBASE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("неизвестный AUTH_PROVIDER: %q", c.AuthConfig.Provider)
	}
	return nil
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("некорректное значение %s: %w", key, err)
	}
	return v, nil
}
