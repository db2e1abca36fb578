package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScenarioFromString(t *testing.T) {
	src := `
local s = Scenario.new("skirmish")
s:add_token("Rook", {x = 0.25, y = 0.5, kind = "player", owner = "user-rook"})
s:move_token("Rook", 0.5, 0.5)
s:stroke({mode = "draw", color = "#ff0000", size = 3, points = {{x = 0.1, y = 0.1}, {x = 0.2, y = 0.2}}})
s:start_combat("Rook, Goblin", {round = 2})
s:expect_turn(1)
return s
`
	scenario, err := LoadScenarioFromString(src, "inline")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if scenario.Name != "skirmish" {
		t.Fatalf("name = %q, want skirmish", scenario.Name)
	}
	if len(scenario.Steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(scenario.Steps))
	}

	kinds := []string{"add_token", "move_token", "stroke", "start_combat", "expect_turn"}
	for i, kind := range kinds {
		if scenario.Steps[i].Kind != kind {
			t.Fatalf("step %d kind = %q, want %q", i, scenario.Steps[i].Kind, kind)
		}
	}

	add := scenario.Steps[0].Args
	if add["label"] != "Rook" || add["owner"] != "user-rook" {
		t.Fatalf("add_token args = %+v", add)
	}
	if x, ok := add["x"].(float64); !ok || x != 0.25 {
		t.Fatalf("add_token x = %v", add["x"])
	}

	stroke := scenario.Steps[2].Args
	points, ok := stroke["points"].([]any)
	if !ok || len(points) != 2 {
		t.Fatalf("stroke points = %v", stroke["points"])
	}
	first, ok := points[0].(map[string]any)
	if !ok {
		t.Fatalf("stroke point 0 = %v", points[0])
	}
	if x, ok := first["x"].(float64); !ok || x != 0.1 {
		t.Fatalf("stroke point x = %v", first["x"])
	}
	if size, ok := stroke["size"].(int); !ok || size != 3 {
		t.Fatalf("stroke size = %v", stroke["size"])
	}

	combat := scenario.Steps[3].Args
	if combat["order"] != "Rook, Goblin" {
		t.Fatalf("combat order = %v", combat["order"])
	}
	if round, ok := combat["round"].(int); !ok || round != 2 {
		t.Fatalf("combat round = %v", combat["round"])
	}
}

func TestLoadScenarioRejectsNonScenarioReturn(t *testing.T) {
	if _, err := LoadScenarioFromString(`return 42`, "bad"); err == nil {
		t.Fatal("expected error for non-scenario return")
	}
	if _, err := LoadScenarioFromString(`this is not lua`, "invalid"); err == nil {
		t.Fatal("expected error for invalid lua")
	}
}

func TestLoadScenarioFromFileNamesAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goblin_raid.lua")
	src := "local s = Scenario.new()\ns:clear_map()\nreturn s\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if scenario.Name != "goblin_raid" {
		t.Fatalf("name = %q, want goblin_raid", scenario.Name)
	}
	if len(scenario.Steps) != 1 || scenario.Steps[0].Kind != "clear_map" {
		t.Fatalf("steps = %+v", scenario.Steps)
	}
}
