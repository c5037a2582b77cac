package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Dump of the message store for local debugging. Records are JSON, so the
// tool only needs to know the key prefixes, not the repository layer.
func main() {
	dbPath := flag.String("db", "/tmp/whisper/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, chat:, chatpair:, chatuser:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
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

			err := item.Value(func(v []byte) error {
				table.Append(describe(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR).
		WithReadOnly(true)
	return badger.Open(opts)
}

func describe(key string, val []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var rec struct {
			ID        string    `json:"id"`
			SenderID  string    `json:"sender_id"`
			Text      string    `json:"text"`
			State     string    `json:"state"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(val, &rec); err != nil {
			return malformed(key, err)
		}
		detail := fmt.Sprintf("[%s] %s: %s", rec.State, rec.SenderID, truncate(rec.Text, 60))
		return []string{key, "MESSAGE", rec.CreatedAt.Format(time.RFC3339), rec.ID, detail}

	case strings.HasPrefix(key, "chat:"):
		var rec struct {
			ID             string    `json:"id"`
			ParticipantA   string    `json:"participant_a"`
			ParticipantB   string    `json:"participant_b"`
			LatestText     string    `json:"latest_text"`
			LastActivityAt time.Time `json:"last_activity_at"`
		}
		if err := json.Unmarshal(val, &rec); err != nil {
			return malformed(key, err)
		}
		detail := fmt.Sprintf("%s <-> %s | %s", rec.ParticipantA, rec.ParticipantB, truncate(rec.LatestText, 40))
		return []string{key, "CHAT", rec.LastActivityAt.Format(time.RFC3339), rec.ID, detail}

	case strings.HasPrefix(key, "user:"):
		var rec struct {
			ID        string    `json:"id"`
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(val, &rec); err != nil {
			return malformed(key, err)
		}
		// Password hashes stay out of the dump.
		return []string{key, "USER", rec.CreatedAt.Format(time.RFC3339), rec.ID, rec.Email}

	default:
		// chatpair: and chatuser: entries carry the chat id as value
		return []string{key, "INDEX", "", string(val), ""}
	}
}

func malformed(key string, err error) []string {
	return []string{key, "???", "", "", fmt.Sprintf("unmarshal error: %v", err)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
