package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	// Map notices
	message.SetString(lang, "notice.map_paused", "The table is paused; only the GM can make changes right now.")
	message.SetString(lang, "notice.save_failed", "Your change could not be saved. Please try again.")
	message.SetString(lang, "notice.load_failed", "The map could not be loaded.")
	message.SetString(lang, "notice.not_permitted", "You are not allowed to do that on this table.")
	message.SetString(lang, "notice.not_drawer", "Another player holds the pen right now.")
	message.SetString(lang, "notice.grant_expired", "Your session for this table has expired. Rejoin to continue.")

	// Error codes
	message.SetString(lang, "error.STROKE_TOO_SHORT", "A drawing needs at least two points.")
	message.SetString(lang, "error.TOKEN_NOT_FOUND", "That token no longer exists.")
	message.SetString(lang, "error.TOKEN_NOT_MOVABLE", "You cannot move that token.")
	message.SetString(lang, "error.SHAPE_NOT_FOUND", "That shape no longer exists.")
	message.SetString(lang, "error.COMBAT_EMPTY_ORDER", "Add at least one combatant to start the encounter.")
	message.SetString(lang, "error.COMBAT_INACTIVE", "No encounter is running.")
	message.SetString(lang, "error.LIBRARY_EMPTY_NAME", "Give the saved map a name.")
	message.SetString(lang, "error.LIBRARY_ENTRY_MISSING", "That saved map no longer exists.")
	message.SetString(lang, "error.MAP_PAUSED", "The table is paused.")
	message.SetString(lang, "error.GRANT_FORBIDDEN", "Only the GM can do that.")
	message.SetString(lang, "error.UNKNOWN", "Something went wrong. Please try again.")
}
