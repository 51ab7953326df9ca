//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IConversationRepository interface {
	GetByID(id string) (domain.Conversation, error)

	// CreateDirect returns the unique non-group conversation between the
	// pair, creating it when absent. The find-or-create is atomic: two
	// participants racing each other always converge on one conversation.
	// The boolean reports whether this call created it.
	CreateDirect(userA, userB string) (domain.Conversation, bool, error)

	// CreateGroup de-duplicates participant ids (creator always included)
	// and derives a default title from the creation date for untitled
	// groups larger than a pair.
	CreateGroup(creatorID string, participantIDs []string, title string) (domain.Conversation, error)

	// AddParticipants appends the ids not already present. Callers that do
	// not participate themselves get ErrForbidden and no mutation.
	AddParticipants(convID, callerID string, newIDs []string) (domain.Conversation, error)

	// ListForUser returns the user's conversations newest-updated first,
	// with participant identities and the last message's sender resolved.
	ListForUser(userID string) ([]domain.ConversationView, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByID(id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, convKey(id), &conv)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, fmt.Errorf("conversation %s: %w", id, errors.ErrNotFound)
	}
	return conv, err
}

func (r *ConversationRepository) CreateDirect(userA, userB string) (domain.Conversation, bool, error) {
	if userA == "" || userB == "" || userA == userB {
		return domain.Conversation{}, false, fmt.Errorf("direct conversation needs two distinct users: %w", errors.ErrValidation)
	}

	var (
		conv    domain.Conversation
		created bool
	)
	err := retryOnConflict(func() error {
		created = false
		return r.db.Update(func(txn *badger.Txn) error {
			// The pair index is the uniqueness constraint: whoever commits
			// first owns the key, the loser's transaction conflicts and is
			// retried against the now-existing entry.
			item, err := txn.Get(directKey(userA, userB))
			if err == nil {
				var convID string
				if err := item.Value(func(val []byte) error {
					convID = string(val)
					return nil
				}); err != nil {
					return err
				}
				return getJSON(txn, convKey(convID), &conv)
			}
			if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			now := time.Now().UTC()
			conv = domain.Conversation{
				ID:      uuid.NewString(),
				IsGroup: false,
				Participants: []domain.Participant{
					{UserID: userA, Role: domain.RoleMember},
					{UserID: userB, Role: domain.RoleMember},
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := txn.Set(directKey(userA, userB), []byte(conv.ID)); err != nil {
				return err
			}
			if err := r.index(txn, conv); err != nil {
				return err
			}
			created = true
			return setJSON(txn, convKey(conv.ID), conv)
		})
	})
	return conv, created, err
}

func (r *ConversationRepository) CreateGroup(creatorID string, participantIDs []string, title string) (domain.Conversation, error) {
	if creatorID == "" {
		return domain.Conversation{}, fmt.Errorf("creator is required: %w", errors.ErrValidation)
	}

	ids := lo.Uniq(append([]string{creatorID}, participantIDs...))
	now := time.Now().UTC()
	if title == "" && len(ids) > 2 {
		title = fmt.Sprintf("Group (%s)", now.Format("2006-01-02"))
	}

	conv := domain.Conversation{
		ID:      uuid.NewString(),
		Title:   title,
		IsGroup: true,
		Participants: lo.Map(ids, func(id string, _ int) domain.Participant {
			return domain.Participant{UserID: id, Role: domain.RoleMember}
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if err := r.index(txn, conv); err != nil {
			return err
		}
		return setJSON(txn, convKey(conv.ID), conv)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (r *ConversationRepository) AddParticipants(convID, callerID string, newIDs []string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := retryOnConflict(func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			if err := getJSON(txn, convKey(convID), &conv); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("conversation %s: %w", convID, errors.ErrNotFound)
				}
				return err
			}
			if !conv.HasParticipant(callerID) {
				return fmt.Errorf("user %s is not a participant: %w", callerID, errors.ErrForbidden)
			}

			changed := false
			for _, id := range lo.Uniq(newIDs) {
				if id == "" || conv.HasParticipant(id) {
					continue
				}
				conv.Participants = append(conv.Participants, domain.Participant{UserID: id, Role: domain.RoleMember})
				if err := txn.Set(userConvKey(id, conv.ID), nil); err != nil {
					return err
				}
				changed = true
			}
			if !changed {
				return nil
			}
			conv.UpdatedAt = time.Now().UTC()
			return setJSON(txn, convKey(conv.ID), conv)
		})
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (r *ConversationRepository) ListForUser(userID string) ([]domain.ConversationView, error) {
	var views []domain.ConversationView
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userConvPrefix + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var convIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			convIDs = append(convIDs, string(it.Item().Key()[len(prefix):]))
		}

		for _, id := range convIDs {
			var conv domain.Conversation
			if err := getJSON(txn, convKey(id), &conv); err != nil {
				return err
			}
			view, err := populate(txn, conv)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views, nil
}

// index writes the participation keys for every participant of conv.
func (r *ConversationRepository) index(txn *badger.Txn, conv domain.Conversation) error {
	for _, p := range conv.Participants {
		if err := txn.Set(userConvKey(p.UserID, conv.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// populate is the explicit read-time join: participant identities plus the
// last message and its sender. Missing users are skipped rather than
// failing the whole listing.
func populate(txn *badger.Txn, conv domain.Conversation) (domain.ConversationView, error) {
	view := domain.ConversationView{Conversation: conv}

	for _, p := range conv.Participants {
		var stored storedUser
		err := getJSON(txn, userKey(p.UserID), &stored)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return view, err
		}
		view.ParticipantUsers = append(view.ParticipantUsers, stored.User)
	}

	if conv.LastMessageID == "" {
		return view, nil
	}
	msgID, err := uuid.Parse(conv.LastMessageID)
	if err != nil {
		return view, nil
	}
	msg, err := messageByID(txn, msgID)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return view, nil
	}
	if err != nil {
		return view, err
	}
	view.LastMessage = &msg

	var sender storedUser
	err = getJSON(txn, userKey(msg.SenderID), &sender)
	if err == nil {
		view.LastMessageFrom = &sender.User
	} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return view, err
	}
	return view, nil
}
