package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity - проверенная личность вызывающего
type Identity struct {
	UserID    string
	Name      string
	AvatarURL string
}

// TokenVerifier проверяет bearer-токен и возвращает личность пользователя
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// JWTService отвечает за создание и валидацию JWT токенов
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
}

var _ TokenVerifier = (*JWTService)(nil)

// NewJWTService создаёт новый экземпляр JWTService
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{secretKey: []byte(secretKey), ttl: 72 * time.Hour}
}

// GenerateToken создаёт JWT токен
func (s *JWTService) GenerateToken(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"name":    id.Name,
		"avatar":  id.AvatarURL,
		"exp":     time.Now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken проверяет подпись, алгоритм и срок действия
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
}

// ExtractUserID извлекает ID пользователя из токена
func (s *JWTService) ExtractUserID(tokenString string) (string, error) {
	id, err := s.Verify(context.Background(), tokenString)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

func (s *JWTService) Verify(_ context.Context, tokenString string) (*Identity, error) {
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("неверный формат claims")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("в токене нет user_id")
	}
	name, _ := claims["name"].(string)
	avatar, _ := claims["avatar"].(string)

	return &Identity{UserID: userID, Name: name, AvatarURL: avatar}, nil
}
