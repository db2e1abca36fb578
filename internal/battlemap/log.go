package battlemap

import "time"

// MaxLogEntries caps the battle log; the oldest entries fall off first.
const MaxLogEntries = 200

// BattleLogEntry is one append-only record of a table action. Details is an
// opaque structured payload; it is deep-copied on entry so later mutation by
// the caller cannot alias stored state.
type BattleLogEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	ActorID   string         `json:"actorId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CopyDetails returns a deep copy of an opaque details payload.
func CopyDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return CopyDetails(value)
	case []any:
		out := make([]any, len(value))
		for i, entry := range value {
			out[i] = copyValue(entry)
		}
		return out
	default:
		return v
	}
}

// AppendLog appends an entry with its details deep-copied and truncates the
// log from the oldest end at MaxLogEntries.
func AppendLog(entries []BattleLogEntry, entry BattleLogEntry) []BattleLogEntry {
	entry.Details = CopyDetails(entry.Details)
	entries = append(entries, entry)
	if len(entries) > MaxLogEntries {
		entries = entries[len(entries)-MaxLogEntries:]
	}
	return entries
}
