package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// idTokenVerifier - часть *fbauth.Client, которая нужна для проверки токенов
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier проверяет ID-токены Firebase Auth
type FirebaseVerifier struct {
	client idTokenVerifier
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)

// NewFirebaseVerifier инициализирует приложение Firebase и клиент Auth
func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Firebase: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения клиента Firebase Auth: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

func (f *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	decoded, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	name, _ := decoded.Claims["name"].(string)
	picture, _ := decoded.Claims["picture"].(string)

	return &Identity{UserID: decoded.UID, Name: name, AvatarURL: picture}, nil
}
