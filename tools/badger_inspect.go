package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"chat-core/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Dumps the chat store for debugging: users, conversations and messages,
// depending on the prefix flag.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (user:, conv:, msg:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				table.Append([]string{key, detail(key, val)})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
}

func detail(key string, val []byte) string {
	switch {
	case len(key) > 4 && key[:4] == "msg:":
		var m domain.Message
		if err := json.Unmarshal(val, &m); err == nil {
			return fmt.Sprintf("%s [%s] %s (read by %d)", m.SenderID, m.Kind, m.Text, len(m.ReadBy))
		}
	case len(key) > 5 && key[:5] == "conv:":
		var c domain.Conversation
		if err := json.Unmarshal(val, &c); err == nil {
			return fmt.Sprintf("group=%t title=%q participants=%d", c.IsGroup, c.Title, len(c.Participants))
		}
	case len(key) > 5 && key[:5] == "user:":
		var u domain.User
		if err := json.Unmarshal(val, &u); err == nil {
			return fmt.Sprintf("%s <%s> ext=%s", u.Name, u.Email, u.ExternalID)
		}
	}
	return string(val)
}
