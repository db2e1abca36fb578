package battlemap

import "github.com/seralith/wartable/internal/geo"

// TokenKind classifies what a token represents on the board.
type TokenKind string

const (
	TokenKindPlayer TokenKind = "player"
	TokenKindDemon  TokenKind = "demon"
	TokenKindEnemy  TokenKind = "enemy"
	TokenKindNPC    TokenKind = "npc"
	TokenKindCustom TokenKind = "custom"
)

// ValidTokenKind reports whether k is a known token kind.
func ValidTokenKind(k TokenKind) bool {
	switch k {
	case TokenKindPlayer, TokenKindDemon, TokenKindEnemy, TokenKindNPC, TokenKindCustom:
		return true
	}
	return false
}

const defaultTokenColor = "#b0413e"

// Token is a movable marker on the board. Tooltip carries the opaque
// wire-encoded hover card (see package tokenmeta); the state model never
// interprets it.
type Token struct {
	ID          string    `json:"id"`
	Kind        TokenKind `json:"kind"`
	RefID       string    `json:"refId,omitempty"`
	Label       string    `json:"label"`
	Color       string    `json:"color"`
	Position    geo.Point `json:"position"`
	OwnerID     string    `json:"ownerId,omitempty"`
	ShowTooltip bool      `json:"showTooltip"`
	Tooltip     string    `json:"tooltip,omitempty"`
	PortraitURL string    `json:"portraitUrl,omitempty"`
}

// Normalize clamps the token position into the unit square and repairs an
// unknown kind to custom.
func (t Token) Normalize() Token {
	if !ValidTokenKind(t.Kind) {
		t.Kind = TokenKindCustom
	}
	t.Color = geo.HexColorOr(t.Color, defaultTokenColor)
	t.Position = geo.ClampPoint(t.Position)
	return t
}

// MovableBy reports whether the principal may move this token. The GM moves
// anything; an owner moves their own token only while player moves are
// allowed and the table is not paused.
func (t Token) MovableBy(userID string, gm bool, settings Settings, paused bool) bool {
	if gm {
		return true
	}
	if t.OwnerID == "" || t.OwnerID != userID {
		return false
	}
	return settings.AllowPlayerTokenMoves && !paused
}
