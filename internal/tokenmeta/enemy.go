package tokenmeta

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// EnemyMarker prefixes every structured enemy-card payload.
const EnemyMarker = "__enemy__v1:"

// MaxEnemyPayload bounds the encoded enemy payload after the marker, in runes.
const MaxEnemyPayload = 480

const (
	maxEnemyName  = 80
	maxEnemyNotes = 280
	maxEnemyImage = 200
	maxStatLines  = 6
	maxStatLine   = 100

	ladderStatLines = 3
)

// EnemyCard is the GM-authored stat block shown on enemy tokens. Visibility
// toggles let the GM reveal fields to players one at a time.
type EnemyCard struct {
	Name  string
	// RefID links the card back to a codex record. It is the first
	// identity field sacrificed under budget pressure.
	RefID string
	Stats []string
	Notes string
	Image string

	ShowName  bool
	ShowStats bool
	ShowNotes bool
	ShowImage bool
}

type wireEnemyCard struct {
	V     int      `json:"v"`
	Name  string   `json:"n,omitempty"`
	RefID string   `json:"r,omitempty"`
	Stats []string `json:"s,omitempty"`
	Notes string   `json:"no,omitempty"`
	Image string   `json:"img,omitempty"`
	Show  string   `json:"sh,omitempty"`
}

// showFlags packs the four visibility toggles into a compact letter set so
// they survive every ladder stage.
func (c EnemyCard) showFlags() string {
	var b strings.Builder
	if c.ShowName {
		b.WriteByte('n')
	}
	if c.ShowStats {
		b.WriteByte('s')
	}
	if c.ShowNotes {
		b.WriteByte('o')
	}
	if c.ShowImage {
		b.WriteByte('i')
	}
	return b.String()
}

func applyShowFlags(c *EnemyCard, flags string) {
	c.ShowName = strings.ContainsRune(flags, 'n')
	c.ShowStats = strings.ContainsRune(flags, 's')
	c.ShowNotes = strings.ContainsRune(flags, 'o')
	c.ShowImage = strings.ContainsRune(flags, 'i')
}

// Normalize applies the enemy field caps.
func (c EnemyCard) Normalize() EnemyCard {
	c.Name = truncateRunes(strings.TrimSpace(c.Name), maxEnemyName)
	c.RefID = strings.TrimSpace(c.RefID)
	c.Stats = truncateList(c.Stats, maxStatLines, maxStatLine)
	c.Notes = truncateRunes(strings.TrimSpace(c.Notes), maxEnemyNotes)
	c.Image = truncateRunes(strings.TrimSpace(c.Image), maxEnemyImage)
	return c
}

// EncodeEnemyCard serializes the card under the enemy budget. The ladder
// sheds notes, stat lines, the image, and the codex link before it touches
// the name.
func EncodeEnemyCard(c EnemyCard) string {
	c = c.Normalize()

	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	// Ladder stage 1: drop notes.
	c.Notes = ""
	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	// Ladder stage 2: trim stat lines.
	if len(c.Stats) > ladderStatLines {
		c.Stats = c.Stats[:ladderStatLines]
	}
	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	// Ladder stage 3: drop the image reference.
	c.Image = ""
	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	// Ladder stage 4: drop the codex link.
	c.RefID = ""
	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	// Ladder stage 5: trim the name itself.
	c.Name = truncateRunes(c.Name, maxEnemyName/2)
	if out, ok := tryEnemyCard(c); ok {
		return out
	}

	payload := marshalEnemyCard(c)
	if out, ok := salvagePayload(payload, EnemyMarker, MaxEnemyPayload, func(s string) bool {
		var w wireEnemyCard
		return json.Unmarshal([]byte(s), &w) == nil
	}); ok {
		return out
	}

	return rawFallback(firstNonEmpty(c.Name, c.Notes), MaxEnemyPayload)
}

// DecodeEnemyCard unpacks a wire enemy tooltip string. The second return is
// false when the marker is absent or the payload does not parse.
func DecodeEnemyCard(raw string) (EnemyCard, bool) {
	payload, ok := strings.CutPrefix(raw, EnemyMarker)
	if !ok {
		return EnemyCard{}, false
	}
	var w wireEnemyCard
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return EnemyCard{}, false
	}
	if w.V != 1 {
		return EnemyCard{}, false
	}
	c := EnemyCard{
		Name:  w.Name,
		RefID: w.RefID,
		Stats: w.Stats,
		Notes: w.Notes,
		Image: w.Image,
	}
	applyShowFlags(&c, w.Show)
	return c.Normalize(), true
}

func marshalEnemyCard(c EnemyCard) string {
	w := wireEnemyCard{
		V:     1,
		Name:  c.Name,
		RefID: c.RefID,
		Stats: c.Stats,
		Notes: c.Notes,
		Image: c.Image,
		Show:  c.showFlags(),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return `{"v":1}`
	}
	return string(data)
}

func tryEnemyCard(c EnemyCard) (string, bool) {
	payload := marshalEnemyCard(c)
	if utf8.RuneCountInString(payload) <= MaxEnemyPayload {
		return EnemyMarker + payload, true
	}
	return "", false
}
