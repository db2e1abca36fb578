package client

import (
	"golang.org/x/text/language"

	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/i18n"
)

// noticeKeys maps domain codes to catalog entries. Codes without a dedicated
// line fall back to the generic failure message.
var noticeKeys = map[apperrors.Code]string{
	apperrors.CodeStrokeTooShort:      "error.STROKE_TOO_SHORT",
	apperrors.CodeTokenNotFound:       "error.TOKEN_NOT_FOUND",
	apperrors.CodeTokenNotMovable:     "error.TOKEN_NOT_MOVABLE",
	apperrors.CodeShapeNotFound:       "error.SHAPE_NOT_FOUND",
	apperrors.CodeCombatEmptyOrder:    "error.COMBAT_EMPTY_ORDER",
	apperrors.CodeCombatInactive:      "error.COMBAT_INACTIVE",
	apperrors.CodeLibraryEmptyName:    "error.LIBRARY_EMPTY_NAME",
	apperrors.CodeLibraryEntryMissing: "error.LIBRARY_ENTRY_MISSING",
	apperrors.CodeMapPaused:           "error.MAP_PAUSED",
	apperrors.CodeGrantForbidden:      "error.GRANT_FORBIDDEN",
}

// LocalizedMessage renders the notice for display in the given language.
func (n Notice) LocalizedMessage(tag language.Tag) string {
	key, ok := noticeKeys[apperrors.CodeOf(n.Err)]
	if !ok {
		key = "error.UNKNOWN"
	}
	return i18n.Printer(tag).Sprintf(key)
}

// LocalizedMessageDefault renders the notice in the default language.
func (n Notice) LocalizedMessageDefault() string {
	return n.LocalizedMessage(i18n.Default())
}
