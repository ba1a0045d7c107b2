package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService("secret")

	token, err := s.GenerateToken(Identity{UserID: "tg:42", Name: "Ivan", AvatarURL: "https://a/p.jpg"})
	require.NoError(t, err)

	id, err := s.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "tg:42", Name: "Ivan", AvatarURL: "https://a/p.jpg"}, id)

	userID, err := s.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "tg:42", userID)
}

func TestJWTService_Rejects(t *testing.T) {
	s := NewJWTService("secret")

	other, err := NewJWTService("other").GenerateToken(Identity{UserID: "u"})
	require.NoError(t, err)
	_, err = s.Verify(context.Background(), other)
	assert.Error(t, err, "чужая подпись")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	raw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Verify(context.Background(), raw)
	assert.Error(t, err, "истекший токен")

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	raw, err = noUser.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Verify(context.Background(), raw)
	assert.Error(t, err, "нет user_id")

	_, err = s.Verify(context.Background(), "мусор")
	assert.Error(t, err)
}

type fakeIDVerifier struct {
	token *fbauth.Token
	err   error
}

func (f fakeIDVerifier) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	v := &FirebaseVerifier{client: fakeIDVerifier{token: &fbauth.Token{
		UID:    "fb-uid",
		Claims: map[string]interface{}{"name": "Anna", "picture": "https://p"},
	}}}

	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", id.UserID)
	assert.Equal(t, "Anna", id.Name)
	assert.Equal(t, "https://p", id.AvatarURL)

	v = &FirebaseVerifier{client: fakeIDVerifier{err: errors.New("invalid")}}
	_, err = v.Verify(context.Background(), "tok")
	assert.Error(t, err)
}
