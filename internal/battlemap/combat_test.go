package battlemap

import (
	"errors"
	"testing"
)

func TestCombatStartRejectsEmptyOrder(t *testing.T) {
	_, err := CombatState{}.Start(nil, 1, 1)
	if !errors.Is(err, ErrCombatEmptyOrder) {
		t.Fatalf("err = %v, want ErrCombatEmptyOrder", err)
	}
	_, err = CombatState{}.Start([]string{"  ", ""}, 1, 1)
	if !errors.Is(err, ErrCombatEmptyOrder) {
		t.Fatalf("whitespace order err = %v, want ErrCombatEmptyOrder", err)
	}
}

func TestCombatStartClampsTurn(t *testing.T) {
	c, err := CombatState{}.Start([]string{"Goblin", "Hero"}, 0, 9)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Turn != 2 {
		t.Fatalf("turn = %d, want 2", c.Turn)
	}
	if c.Round != 1 {
		t.Fatalf("round = %d, want 1", c.Round)
	}
}

func TestCombatAdvanceWrapsIntoNextRound(t *testing.T) {
	c, err := CombatState{}.Start([]string{"Goblin", "Hero", "Ogre"}, 1, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.Active || c.Round != 1 || c.Turn != 1 {
		t.Fatalf("start state = %+v", c)
	}

	for i := 0; i < 2; i++ {
		c, err = c.Advance()
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if c.Turn != 3 || c.Round != 1 {
		t.Fatalf("after two advances = round %d turn %d, want round 1 turn 3", c.Round, c.Turn)
	}

	c, err = c.Advance()
	if err != nil {
		t.Fatalf("wrap advance: %v", err)
	}
	if c.Turn != 1 || c.Round != 2 {
		t.Fatalf("after wrap = round %d turn %d, want round 2 turn 1", c.Round, c.Turn)
	}
}

func TestCombatAdvanceRequiresActive(t *testing.T) {
	_, err := CombatState{}.Advance()
	if !errors.Is(err, ErrCombatInactive) {
		t.Fatalf("err = %v, want ErrCombatInactive", err)
	}
}

func TestCombatEndPreservesOrder(t *testing.T) {
	c, _ := CombatState{}.Start([]string{"Goblin", "Hero"}, 2, 2)
	c = c.End()
	if c.Active {
		t.Fatal("still active after end")
	}
	if c.Turn != 0 || c.Round != 0 {
		t.Fatalf("turn/round = %d/%d, want 0/0", c.Turn, c.Round)
	}
	if len(c.Order) != 2 {
		t.Fatalf("order = %v, want preserved", c.Order)
	}
}

func TestCombatNormalizeInvariant(t *testing.T) {
	cases := []struct {
		name string
		in   CombatState
		want CombatState
	}{
		{
			"turn above order",
			CombatState{Active: true, Order: []string{"a", "b"}, Turn: 5, Round: 1},
			CombatState{Active: true, Order: []string{"a", "b"}, Turn: 2, Round: 1},
		},
		{
			"active without order deactivates",
			CombatState{Active: true, Turn: 3, Round: 2},
			CombatState{Turn: 0, Round: 0},
		},
		{
			"inactive zeroes counters",
			CombatState{Order: []string{"a"}, Turn: 1, Round: 1},
			CombatState{Order: []string{"a"}, Turn: 0, Round: 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Active != tc.want.Active || got.Turn != tc.want.Turn || got.Round != tc.want.Round {
				t.Fatalf("normalize = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"newlines", "Goblin\nHero\nOgre", []string{"Goblin", "Hero", "Ogre"}},
		{"commas", "Goblin, Hero ,Ogre", []string{"Goblin", "Hero", "Ogre"}},
		{"mixed with blanks", "Goblin,\n\n Hero,,\n", []string{"Goblin", "Hero"}},
		{"duplicates kept", "Goblin,Goblin", []string{"Goblin", "Goblin"}},
		{"empty", "  \n , ", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseOrder(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("ParseOrder = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("ParseOrder[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestParseOrderCaps(t *testing.T) {
	var text string
	for i := 0; i < MaxCombatOrder+10; i++ {
		text += "fighter,"
	}
	if got := ParseOrder(text); len(got) != MaxCombatOrder {
		t.Fatalf("len = %d, want %d", len(got), MaxCombatOrder)
	}
}
