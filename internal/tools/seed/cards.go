package seed

import "github.com/seralith/wartable/internal/tokenmeta"

// CardSource resolves a token's refId into its hover card. Sheet and codex
// data belong to collaborator systems; the seeder only encodes what a source
// hands back.
type CardSource interface {
	Card(refID string) (tokenmeta.Card, bool)
}

// StaticCards is a fixed in-memory CardSource.
type StaticCards map[string]tokenmeta.Card

// Card implements CardSource.
func (s StaticCards) Card(refID string) (tokenmeta.Card, bool) {
	c, ok := s[refID]
	return c, ok
}

// DemoCards returns the deck backing the bundled scenes.
func DemoCards() StaticCards {
	return StaticCards{
		"pc-rook": {
			Kind:  tokenmeta.KindPlayer,
			Label: "Rook",
			Text:  "Half-orc sellsword with a grudge and a greataxe.",
			Lines: []string{"HP 34/34", "AC 16", "Speed 30"},
		},
		"pc-imara": {
			Kind:  tokenmeta.KindPlayer,
			Label: "Imara",
			Text:  "Hedge witch travelling under an assumed name.",
			Lines: []string{"HP 21/21", "AC 12", "Spell DC 14"},
		},
		"demon-vetch": {
			Kind:  tokenmeta.KindDemonAlly,
			Label: "Vetch",
			Text:  "Bound imp. Loyal while the contract holds.",
			Lines: []string{"HP 10", "Flight 40", "Invisibility 1/day"},
			Notes: "Contract expires on the new moon.",
		},
		"enemy-goblin": {
			Kind:  tokenmeta.KindDemonEnemy,
			Label: "Goblin Skirmisher",
			Text:  "Quick, cowardly, and fond of ambushes.",
			Lines: []string{"HP 7", "AC 15", "Nimble Escape"},
		},
		"npc-fenwick": {
			Kind:  tokenmeta.KindNPCShop,
			Label: "Fenwick's Oddities",
			Text:  "Cramped stall of dubious curios.",
			Items: []string{"Glass eye (3gp)", "Cursed dice (1gp)", "Map, probably fake (10gp)"},
		},
		"npc-strongbox": {
			Kind:  tokenmeta.KindNPCLoot,
			Label: "Abandoned Strongbox",
			Items: []string{"120 sp", "Silvered dagger", "Letter sealed in wax"},
		},
	}
}

// tooltipFor encodes the card for refID, or returns empty when the source
// does not know it.
func tooltipFor(cards CardSource, refID string) string {
	card, ok := cards.Card(refID)
	if !ok {
		return ""
	}
	return tokenmeta.EncodeCard(card)
}
