// Package repositories persists users, conversations and messages in
// BadgerDB. Records are stored as JSON (the same structs that travel on the
// wire); keys are designed so that prefix scans return what list operations
// need without secondary queries.
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout:
//
//	user:<localID>                       user record
//	extuser:<externalID>                 external id -> local id
//	useremail:<email>                    email -> local id
//	conv:<convID>                        conversation record
//	direct:<minID>:<maxID>               direct-pair uniqueness index -> convID
//	userconv:<userID>:<convID>           participation index (empty value)
//	msg:<convID>:<unixnano %019d>:<uuid> message record
//	msgid:<uuid>                         message id -> full msg key
//
// The 19-digit zero padding keeps message keys lexicographically
// chronological; the uuid disambiguates same-nanosecond writes.
const (
	userPrefix      = "user:"
	extUserPrefix   = "extuser:"
	userEmailPrefix = "useremail:"
	convPrefix      = "conv:"
	directPrefix    = "direct:"
	userConvPrefix  = "userconv:"
	msgPrefix       = "msg:"
	msgIDPrefix     = "msgid:"
)

func userKey(id string) []byte       { return []byte(userPrefix + id) }
func extUserKey(ext string) []byte   { return []byte(extUserPrefix + ext) }
func userEmailKey(e string) []byte   { return []byte(userEmailPrefix + e) }
func convKey(id string) []byte       { return []byte(convPrefix + id) }
func msgIDKey(id uuid.UUID) []byte   { return []byte(msgIDPrefix + id.String()) }
func convMsgPrefix(id string) []byte { return []byte(msgPrefix + id + ":") }

func directKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(fmt.Sprintf("%s%s:%s", directPrefix, a, b))
}

func userConvKey(userID, convID string) []byte {
	return []byte(userConvPrefix + userID + ":" + convID)
}

func msgKey(convID string, unixNano int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", msgPrefix, convID, unixNano, id))
}

// setJSON marshals v and stores it under key within txn.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

// getJSON loads key within txn and unmarshals into v. The badger
// key-not-found error passes through untouched so callers can translate it.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
