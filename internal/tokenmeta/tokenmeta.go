// Package tokenmeta packs token hover-card metadata into the single legacy
// tooltip string carried on the wire.
//
// The persisted column is one opaque text field, so cards serialize to a
// versioned marker plus compact JSON under a hard length budget. When a card
// does not fit, a deterministic degradation ladder sheds fields in order of
// expendability: a card loses its notes before it loses its identity, and the
// final fallback is plain truncated text that renders without structure.
package tokenmeta

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Kind identifies which hover card a token presents.
type Kind string

const (
	KindPlayer     Kind = "player"
	KindDemonAlly  Kind = "demon-ally"
	KindDemonEnemy Kind = "demon-enemy"
	KindNPCShop    Kind = "npc-shop"
	KindNPCLoot    Kind = "npc-loot"
	KindNPCMisc    Kind = "npc-misc"
)

// CardMarker prefixes every structured generic-card payload.
const CardMarker = "__token__v1:"

// MaxCardPayload bounds the encoded payload after the marker, in runes.
const MaxCardPayload = 460

const (
	maxLabel       = 80
	maxText        = 240
	maxDemonText   = 280
	maxListEntries = 12
	maxListEntry   = 60

	// Ladder caps applied only under budget pressure.
	ladderListEntries  = 6
	ladderTextCap      = 240
	ladderShortEntries = 4
	ladderShortEntry   = 40

	// minPayload is the floor for backward trimming when closing brackets;
	// below this the encoder gives up on structure entirely.
	minPayload = 20
)

// Card is the hover card for player, demon, and NPC tokens.
type Card struct {
	Kind  Kind
	Label string
	// Text is the primary description body.
	Text string
	// Lines are short stat/info rows (player and demon kinds).
	Lines []string
	// Items are list entries such as shop stock or loot (NPC shop/loot kinds).
	Items []string
	// Notes are supplementary free text, first to go under budget pressure.
	Notes string
	Image string
}

// wireCard is the JSON shape behind CardMarker. Keys stay terse because the
// payload competes for space inside a legacy single-string column.
type wireCard struct {
	V     int      `json:"v"`
	Kind  Kind     `json:"k"`
	Label string   `json:"l,omitempty"`
	Text  string   `json:"t,omitempty"`
	Lines []string `json:"ln,omitempty"`
	Items []string `json:"it,omitempty"`
	Notes string   `json:"n,omitempty"`
	Image string   `json:"img,omitempty"`
}

func validKind(k Kind) bool {
	switch k {
	case KindPlayer, KindDemonAlly, KindDemonEnemy, KindNPCShop, KindNPCLoot, KindNPCMisc:
		return true
	}
	return false
}

func (k Kind) textCap() int {
	if k == KindDemonAlly || k == KindDemonEnemy {
		return maxDemonText
	}
	return maxText
}

// Normalize applies the per-kind retention rules and field caps. Unknown
// kinds collapse to npc-misc so stored cards always round-trip to something
// renderable.
func (c Card) Normalize() Card {
	if !validKind(c.Kind) {
		c.Kind = KindNPCMisc
	}
	c.Label = truncateRunes(strings.TrimSpace(c.Label), maxLabel)
	cap := c.Kind.textCap()
	c.Text = truncateRunes(strings.TrimSpace(c.Text), cap)
	c.Notes = truncateRunes(strings.TrimSpace(c.Notes), cap)
	c.Lines = truncateList(c.Lines, maxListEntries, maxListEntry)
	c.Items = truncateList(c.Items, maxListEntries, maxListEntry)

	switch c.Kind {
	case KindPlayer, KindDemonAlly, KindDemonEnemy:
		c.Items = nil
	case KindNPCShop, KindNPCLoot:
		c.Lines = nil
	case KindNPCMisc:
		c.Lines = nil
		c.Items = nil
	}
	if c.Kind == KindNPCLoot {
		c.Image = ""
	}
	return c
}

// EncodeCard serializes the card under its length budget, degrading
// deterministically when the full card does not fit.
func EncodeCard(c Card) string {
	c = c.Normalize()

	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 1: drop free-text notes.
	c.Notes = ""
	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 2: cut list fields to the ladder cap.
	if len(c.Lines) > ladderListEntries {
		c.Lines = c.Lines[:ladderListEntries]
	}
	if len(c.Items) > ladderListEntries {
		c.Items = c.Items[:ladderListEntries]
	}
	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 3: tighten the primary text progressively.
	for _, limit := range []int{ladderTextCap, 120, 60} {
		c.Text = truncateRunes(c.Text, limit)
		if out, ok := tryCard(c); ok {
			return out
		}
	}

	// Ladder stage 4: drop the image link.
	c.Image = ""
	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 5: shorten list entries before surrendering them.
	c.Lines = truncateList(c.Lines, ladderShortEntries, ladderShortEntry)
	c.Items = truncateList(c.Items, ladderShortEntries, ladderShortEntry)
	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 6: drop the text, keep the stat rows.
	c.Text = ""
	if out, ok := tryCard(c); ok {
		return out
	}

	// Ladder stage 7: identity only.
	collapsed := Card{Kind: c.Kind, Label: c.Label}
	if out, ok := tryCard(collapsed); ok {
		return out
	}

	// Structural salvage: hard-truncate the JSON and close open brackets.
	payload := marshalCard(collapsed)
	if out, ok := salvagePayload(payload, CardMarker, MaxCardPayload, func(s string) bool {
		var w wireCard
		return json.Unmarshal([]byte(s), &w) == nil
	}); ok {
		return out
	}

	// Last resort: unstructured truncated text.
	return rawFallback(firstNonEmpty(collapsed.Label, collapsed.Text, string(collapsed.Kind)), MaxCardPayload)
}

// DecodeCard unpacks a wire tooltip string. The second return is false when
// the marker is absent or the payload does not parse; callers then treat the
// raw string as plain tooltip text.
func DecodeCard(raw string) (Card, bool) {
	payload, ok := strings.CutPrefix(raw, CardMarker)
	if !ok {
		return Card{}, false
	}
	var w wireCard
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Card{}, false
	}
	if w.V != 1 {
		return Card{}, false
	}
	c := Card{
		Kind:  w.Kind,
		Label: w.Label,
		Text:  w.Text,
		Lines: w.Lines,
		Items: w.Items,
		Notes: w.Notes,
		Image: w.Image,
	}
	return c.Normalize(), true
}

func marshalCard(c Card) string {
	w := wireCard{
		V:     1,
		Kind:  c.Kind,
		Label: c.Label,
		Text:  c.Text,
		Lines: c.Lines,
		Items: c.Items,
		Notes: c.Notes,
		Image: c.Image,
	}
	data, err := json.Marshal(w)
	if err != nil {
		// Marshaling flat strings and slices cannot fail; keep the encoder
		// total anyway.
		return `{"v":1,"k":"npc-misc"}`
	}
	return string(data)
}

func tryCard(c Card) (string, bool) {
	payload := marshalCard(c)
	if utf8.RuneCountInString(payload) <= MaxCardPayload {
		return CardMarker + payload, true
	}
	return "", false
}

// salvagePayload cuts payload to the budget and walks backwards until the
// bracket-closed prefix parses. Returns false when no prefix above the floor
// parses.
func salvagePayload(payload, marker string, budget int, parses func(string) bool) (string, bool) {
	runes := []rune(payload)
	cut := budget
	if cut > len(runes) {
		cut = len(runes)
	}
	for ; cut >= minPayload; cut-- {
		closed := closeBrackets(string(runes[:cut]))
		if utf8.RuneCountInString(closed) > budget {
			continue
		}
		if parses(closed) {
			return marker + closed, true
		}
	}
	return "", false
}

// closeBrackets appends the closers needed to balance a JSON prefix, closing
// an open string first. The result is not guaranteed to parse; callers
// verify.
func closeBrackets(s string) string {
	var stack []rune
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, r)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	if escaped {
		// A dangling backslash cannot be closed into a valid string.
		return s
	}
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func rawFallback(text string, budget int) string {
	return truncateRunes(strings.TrimSpace(text), budget)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func truncateList(list []string, maxEntries, maxEntry int) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		entry = truncateRunes(strings.TrimSpace(entry), maxEntry)
		if entry == "" {
			continue
		}
		out = append(out, entry)
		if len(out) == maxEntries {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
