//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	// UpsertByExternalID creates or refreshes the local record for an
	// externally authenticated user. Last write wins on name, email and
	// photo; the local id is stable across upserts.
	UpsertByExternalID(externalID, name, email, photo string) (domain.User, error)
	GetByID(id string) (domain.User, error)

	// Local credential store.
	CreateLocal(name, email, hashedPassword string) (domain.User, error)
	GetCredentials(email string) (Credentials, error)
}

// Credentials is the repository-level view of a locally registered user,
// the only place the password hash surfaces.
type Credentials struct {
	User         domain.User
	PasswordHash string
	Roles        []string
}

// storedUser is the on-disk shape; the hash never leaves the repository.
type storedUser struct {
	domain.User
	PasswordHash string   `json:"passwordHash,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

func (u *UserRepository) UpsertByExternalID(externalID, name, email, photo string) (domain.User, error) {
	var out domain.User
	err := retryOnConflict(func() error {
		return u.db.Update(func(txn *badger.Txn) error {
			now := time.Now().UTC()

			var localID string
			item, err := txn.Get(extUserKey(externalID))
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					localID = string(val)
					return nil
				}); err != nil {
					return err
				}
			case stderrors.Is(err, badger.ErrKeyNotFound):
				localID = uuid.NewString()
				if err := txn.Set(extUserKey(externalID), []byte(localID)); err != nil {
					return err
				}
			default:
				return err
			}

			var stored storedUser
			if err := getJSON(txn, userKey(localID), &stored); err != nil {
				if !stderrors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				stored.ID = localID
				stored.ExternalID = externalID
				stored.CreatedAt = now
			}

			stored.Name = name
			stored.Email = email
			stored.Photo = photo
			stored.UpdatedAt = now
			if err := setJSON(txn, userKey(localID), stored); err != nil {
				return err
			}
			out = stored.User
			return nil
		})
	})
	return out, err
}

func (u *UserRepository) GetByID(id string) (domain.User, error) {
	var stored storedUser
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &stored)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, errors.ErrNotFound)
	}
	return stored.User, err
}

func (u *UserRepository) CreateLocal(name, email, hashedPassword string) (domain.User, error) {
	now := time.Now().UTC()
	stored := storedUser{
		User: domain.User{
			ID: uuid.NewString(),
			// Local accounts share the external-id namespace so the
			// identity bridge upsert resolves them to the same record.
			ExternalID: "local:" + email,
			Name:       name,
			Email:      email,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
	}

	err := u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userEmailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userEmailKey(email), []byte(stored.ID)); err != nil {
			return err
		}
		if err := txn.Set(extUserKey(stored.ExternalID), []byte(stored.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(stored.ID), stored)
	})
	if err != nil {
		return domain.User{}, err
	}
	return stored.User, nil
}

func (u *UserRepository) GetCredentials(email string) (Credentials, error) {
	var stored storedUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &stored)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Credentials{}, fmt.Errorf("user %s: %w", email, errors.ErrNotFound)
	}
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{User: stored.User, PasswordHash: stored.PasswordHash, Roles: stored.Roles}, nil
}

// retryOnConflict re-runs a badger transaction that lost a serializable
// conflict. Concurrent upserts for the same keys are expected under load;
// the retried transaction re-reads and converges.
func retryOnConflict(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
