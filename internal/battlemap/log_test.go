package battlemap

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendLogCapsAtMax(t *testing.T) {
	var entries []BattleLogEntry
	for i := 0; i < MaxLogEntries+25; i++ {
		entries = AppendLog(entries, BattleLogEntry{
			ID:        fmt.Sprintf("log-%d", i),
			Action:    "token_moved",
			CreatedAt: time.Now(),
		})
	}
	if len(entries) != MaxLogEntries {
		t.Fatalf("len = %d, want %d", len(entries), MaxLogEntries)
	}
	if entries[0].ID != "log-25" {
		t.Fatalf("oldest = %q, want log-25", entries[0].ID)
	}
	if entries[len(entries)-1].ID != fmt.Sprintf("log-%d", MaxLogEntries+24) {
		t.Fatalf("newest = %q", entries[len(entries)-1].ID)
	}
}

func TestAppendLogCopiesDetails(t *testing.T) {
	details := map[string]any{
		"token": "t1",
		"path":  []any{"a", "b"},
		"from":  map[string]any{"x": 0.1},
	}
	entries := AppendLog(nil, BattleLogEntry{ID: "log-1", Details: details})

	details["token"] = "mutated"
	details["path"].([]any)[0] = "mutated"
	details["from"].(map[string]any)["x"] = 0.9

	stored := entries[0].Details
	if stored["token"] != "t1" {
		t.Fatalf("token = %v, want t1", stored["token"])
	}
	if stored["path"].([]any)[0] != "a" {
		t.Fatal("nested slice aliased")
	}
	if stored["from"].(map[string]any)["x"] != 0.1 {
		t.Fatal("nested map aliased")
	}
}
