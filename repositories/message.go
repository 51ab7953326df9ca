//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// List pagination bounds; limit is clamped, page floored.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type IMessageRepository interface {
	// Append persists msg and, in the same transaction, moves the owning
	// conversation's last-message pointer and refreshes its update
	// timestamp. The sender is always part of the initial read-set.
	Append(msg domain.Message) (domain.Message, error)

	GetByID(id uuid.UUID) (domain.Message, error)

	// MarkRead adds userID to the message's read-set. Idempotent: the set
	// never shrinks and repeated calls report changed=false without error.
	MarkRead(id uuid.UUID, userID string) (domain.Message, bool, error)

	// List returns one page of a conversation's history in chronological
	// order. Pages count from the newest message backward (page 1 holds
	// the most recent limit messages); hasMore is true while older pages
	// remain.
	List(convID string, page, limit int) ([]domain.Message, bool, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) IMessageRepository {
	return &MessageRepository{db: db, log: log}
}

func (m *MessageRepository) Append(msg domain.Message) (domain.Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if !lo.Contains(msg.ReadBy, msg.SenderID) {
		msg.ReadBy = append(msg.ReadBy, msg.SenderID)
	}

	err := retryOnConflict(func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			var conv domain.Conversation
			if err := getJSON(txn, convKey(msg.ConversationID), &conv); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("conversation %s: %w", msg.ConversationID, errors.ErrNotFound)
				}
				return err
			}

			key := msgKey(msg.ConversationID, msg.CreatedAt.UnixNano(), msg.ID)
			if err := setJSON(txn, key, msg); err != nil {
				return err
			}
			if err := txn.Set(msgIDKey(msg.ID), key); err != nil {
				return err
			}

			conv.LastMessageID = msg.ID.String()
			conv.UpdatedAt = msg.CreatedAt
			return setJSON(txn, convKey(conv.ID), conv)
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (m *MessageRepository) GetByID(id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		msg, err = messageByID(txn, id)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	return msg, err
}

func (m *MessageRepository) MarkRead(id uuid.UUID, userID string) (domain.Message, bool, error) {
	var (
		msg     domain.Message
		changed bool
	)
	err := retryOnConflict(func() error {
		changed = false
		return m.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(msgIDKey(id))
			if err != nil {
				return err
			}
			var key []byte
			if err := item.Value(func(val []byte) error {
				key = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			if err := getJSON(txn, key, &msg); err != nil {
				return err
			}

			if msg.ReadByContains(userID) {
				return nil
			}
			msg.ReadBy = append(msg.ReadBy, userID)
			changed = true
			return setJSON(txn, key, msg)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, false, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, changed, nil
}

func (m *MessageRepository) List(convID string, page, limit int) ([]domain.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	skip := (page - 1) * limit

	messages := make([]domain.Message, 0, limit)
	var hasMore bool
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := convMsgPrefix(convID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts past the newest key for this prefix.
		seekKey := append(append([]byte(nil), prefix...), 0xFF)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if len(messages) == limit {
				// One extra record past the page means older history exists.
				hasMore = true
				return nil
			}
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	// Collected newest-first; the page itself is served chronologically.
	messages = lo.Reverse(messages)
	return messages, hasMore, nil
}

// messageByID resolves the id index and loads the record within txn.
func messageByID(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	item, err := txn.Get(msgIDKey(id))
	if err != nil {
		return msg, err
	}
	var key []byte
	if err := item.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return msg, err
	}
	err = getJSON(txn, key, &msg)
	return msg, err
}
