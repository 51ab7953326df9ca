package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the data stored inside access and refresh tokens.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates the session tokens issued by the local
// credential store. The secret is injected from configuration.
type TokenManager struct {
	secret          []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewTokenManager(secret string, accessDuration, refreshDuration time.Duration) *TokenManager {
	return &TokenManager{
		secret:          []byte(secret),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// GenerateToken creates a signed access token for a user.
func (t *TokenManager) GenerateToken(userID string, roles []string) (string, error) {
	return t.sign(userID, roles, t.accessDuration)
}

// GenerateRefreshToken creates the long-lived token used for rotation.
func (t *TokenManager) GenerateRefreshToken(userID string) (string, error) {
	return t.sign(userID, nil, t.refreshDuration)
}

func (t *TokenManager) sign(userID string, roles []string, d time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(d)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-core",
		},
	}

	// HS256: HMAC with SHA256, same algorithm for both token kinds.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken parses and validates the signature and expiration of a
// token string.
func (t *TokenManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
