package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"whisper/observability"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes the message store and the runtime counters on a
// local HTML page. Read-only, meant for development setups; nothing behind
// it authenticates, so never bind it on a public interface.
func StartDebugServer(db *badger.DB, monitoring *observability.Monitoring, port int, log *slog.Logger) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		stats := monitoring.Snapshot()
		data := PageData{
			Prefix: prefix,
			Stats: map[string]any{
				"delivered":       stats.Delivered,
				"dropped":         stats.Dropped,
				"messages_stored": stats.MessagesStored,
				"seen_flips":      stats.SeenFlips,
			},
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitoring.Snapshot())
	})

	go func() {
		addr := fmt.Sprintf("localhost:%d", port)
		log.Info("debug inspector listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("debug inspector stopped", "error", err)
		}
	}()
}

func mapRow(key string, val []byte) InspectRow {
	row := InspectRow{Key: key, Type: "RAW", Detail: fmt.Sprintf("%d bytes", len(val))}

	switch {
	case strings.HasPrefix(key, "msg:"):
		var rec struct {
			ID        string    `json:"id"`
			SenderID  string    `json:"sender_id"`
			Text      string    `json:"text"`
			State     string    `json:"state"`
			CreatedAt time.Time `json:"created_at"`
		}
		if json.Unmarshal(val, &rec) != nil {
			return row
		}
		row.Type = "MESSAGE"
		row.Timestamp = rec.CreatedAt.Format("15:04:05")
		row.EntityID = shorten(rec.ID)
		row.Detail = fmt.Sprintf("[%s] %s: %s", rec.State, rec.SenderID, rec.Text)

	case strings.HasPrefix(key, "chat:"):
		var rec struct {
			ID             string    `json:"id"`
			ParticipantA   string    `json:"participant_a"`
			ParticipantB   string    `json:"participant_b"`
			LastActivityAt time.Time `json:"last_activity_at"`
		}
		if json.Unmarshal(val, &rec) != nil {
			return row
		}
		row.Type = "CHAT"
		row.Timestamp = rec.LastActivityAt.Format("15:04:05")
		row.EntityID = shorten(rec.ID)
		row.Detail = rec.ParticipantA + " <-> " + rec.ParticipantB

	case strings.HasPrefix(key, "user:"):
		var rec struct {
			ID        string    `json:"id"`
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"created_at"`
		}
		if json.Unmarshal(val, &rec) != nil {
			return row
		}
		row.Type = "USER"
		row.Timestamp = rec.CreatedAt.Format("15:04:05")
		row.EntityID = shorten(rec.ID)
		row.Detail = rec.Email

	case strings.HasPrefix(key, "chatpair:"), strings.HasPrefix(key, "chatuser:"):
		row.Type = "INDEX"
		row.EntityID = shorten(string(val))
	}
	return row
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
