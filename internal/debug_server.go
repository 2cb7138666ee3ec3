package internal

import (
	"chat-hub/repositories"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

const inspectPage = `<!DOCTYPE html>
<html>
<head><title>chat-hub store</title>
<style>
body { font-family: monospace; margin: 20px; }
table { border-collapse: collapse; }
td, th { padding: 2px 12px; text-align: left; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
<form><input name="prefix" value="{{.Prefix}}"> <button>Scan</button></form>
<p>{{range $k, $v := .Stats}}{{$k}}: {{$v}} &nbsp; {{end}}</p>
<table>
<tr><th>Key</th><th>Type</th><th>ID</th><th>At</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Type}}</td><td>{{.ID}}</td><td>{{.At}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body>
</html>`

// StatsProvider feeds the header line of the page.
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []repositories.InspectRow
	Stats  map[string]any
}

// NewDebugServer serves a read-only view of the badger entries under /inspect?prefix=.
func NewDebugServer(log *slog.Logger, db *badger.DB, port int, stats StatsProvider) *http.Server {
	tmpl := template.Must(template.New("inspect").Parse(inspectPage))
	mux := http.NewServeMux()

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		data := PageData{Prefix: r.URL.Query().Get("prefix"), Stats: make(map[string]any)}
		if stats != nil {
			data.Stats = stats()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := []byte(data.Prefix)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				key := string(item.KeyCopy(nil))
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, repositories.Describe(key, val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Warn("Inspect scan failed", "prefix", data.Prefix, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	return &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", port), Handler: mux}
}
