package repositories

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// InspectRow is a human readable view of one raw badger entry.
type InspectRow struct {
	Key    string
	Type   string
	ID     string
	At     string
	Detail string
}

// Describe decodes an entry of the store's key layout. Unknown or corrupt
// entries are shown raw.
func Describe(key string, val []byte) InspectRow {
	kind, rest, _ := strings.Cut(key, ":")
	row := InspectRow{Key: key, Type: strings.ToUpper(kind), ID: rest, At: "-", Detail: fmt.Sprintf("%d bytes", len(val))}

	switch kind {
	case "user":
		var r userRecord
		if cbor.Unmarshal(val, &r) == nil {
			row.At = stamp(r.CreatedAt)
			row.Detail = fmt.Sprintf("%s online=%t", r.Username, r.IsOnline)
		}
	case "chat":
		var r chatRecord
		if cbor.Unmarshal(val, &r) == nil {
			row.At = stamp(r.UpdatedAt)
			row.Detail = fmt.Sprintf("%q group=%t participants=%d last=%d", r.Name, r.IsGroup, len(r.Participants), r.LastMessageID)
		}
	case "msg":
		var r messageRecord
		if cbor.Unmarshal(val, &r) == nil {
			row.ID = fmt.Sprint(r.ID)
			row.At = stamp(r.CreatedAt)
			row.Detail = fmt.Sprintf("chat=%d from=%d [%s] %s", r.ChatID, r.SenderID, r.Status, truncate(r.Content, 40))
		}
	case "username", "direct", "msgidx":
		row.Detail = "-> " + string(val)
	case "member":
		row.Detail = "index"
	}
	return row
}

func stamp(n int64) string {
	if n == 0 {
		return "-"
	}
	return fromUnixNano(n).Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
