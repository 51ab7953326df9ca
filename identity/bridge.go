//go:generate go run go.uber.org/mock/mockgen -source=bridge.go -destination=../mocks/mock_identity.go -package=mocks
// Package identity exchanges externally issued bearer credentials for local
// identity records, creating the local record on first sight.
package identity

import (
	"context"
	"fmt"
	"log/slog"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/repositories"
)

// Profile is what the identity provider asserts about a credential.
type Profile struct {
	ExternalID string
	Name       string
	Email      string
	Photo      string
}

// Verifier checks a bearer credential against an identity provider.
type Verifier interface {
	Verify(ctx context.Context, bearer string) (Profile, error)
}

// Bridge authenticates credentials and upserts the matching local user.
type Bridge struct {
	verifier Verifier
	users    repositories.IUserRepository
	log      *slog.Logger
}

func NewBridge(verifier Verifier, users repositories.IUserRepository, log *slog.Logger) *Bridge {
	return &Bridge{verifier: verifier, users: users, log: log}
}

// Authenticate verifies the bearer credential and returns the local
// identity handle. Absent, malformed, and provider-rejected credentials all
// surface as the same ErrAuthenticationFailed; callers reject uniformly.
// The upsert applies the provider's name, email and photo as current truth
// on every successful verification, not just the first.
func (b *Bridge) Authenticate(ctx context.Context, bearer string) (domain.Identity, error) {
	if bearer == "" {
		return domain.Identity{}, fmt.Errorf("missing credential: %w", errors.ErrAuthenticationFailed)
	}

	profile, err := b.verifier.Verify(ctx, bearer)
	if err != nil {
		b.log.Debug("credential rejected", "error", err)
		return domain.Identity{}, fmt.Errorf("%w", errors.ErrAuthenticationFailed)
	}

	user, err := b.users.UpsertByExternalID(profile.ExternalID, profile.Name, profile.Email, profile.Photo)
	if err != nil {
		b.log.Error("identity upsert failed", "external_id", profile.ExternalID, "error", err)
		return domain.Identity{}, fmt.Errorf("identity upsert: %w", errors.ErrTransient)
	}

	return domain.Identity{
		LocalID:    user.ID,
		ExternalID: user.ExternalID,
		Name:       user.Name,
		Photo:      user.Photo,
	}, nil
}
