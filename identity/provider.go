package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chat-core/auth"
	"chat-core/repositories"
)

// HTTPProvider verifies credentials against an external identity provider
// exposing a `GET /api/me` endpoint that echoes the token's owner.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// meResponse mirrors the provider's payload. The provider's numeric id is
// the stable external key.
type meResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
}

func (p *HTTPProvider) Verify(ctx context.Context, bearer string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/me", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("identity provider rejected token: status %d", resp.StatusCode)
	}

	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return Profile{}, fmt.Errorf("malformed provider response: %w", err)
	}

	return Profile{
		ExternalID: strconv.FormatInt(me.ID, 10),
		Name:       me.Name,
		Email:      me.Email,
		Photo:      me.Photo,
	}, nil
}

// LocalVerifier accepts tokens issued by the local credential store, for
// deployments running without an external provider.
type LocalVerifier struct {
	tokens *auth.TokenManager
	users  repositories.IUserRepository
}

func NewLocalVerifier(tokens *auth.TokenManager, users repositories.IUserRepository) *LocalVerifier {
	return &LocalVerifier{tokens: tokens, users: users}
}

func (v *LocalVerifier) Verify(ctx context.Context, bearer string) (Profile, error) {
	claims, err := v.tokens.ValidateToken(bearer)
	if err != nil {
		return Profile{}, err
	}
	user, err := v.users.GetByID(claims.UserID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ExternalID: user.ExternalID,
		Name:       user.Name,
		Email:      user.Email,
		Photo:      user.Photo,
	}, nil
}
