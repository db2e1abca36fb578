// Package errors provides structured error handling for wartable services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Grant errors
	CodeGrantMissing  Code = "GRANT_MISSING"
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"
	CodeGrantForbidden Code = "GRANT_FORBIDDEN"

	// Map errors
	CodeMapEmptyCampaignID Code = "MAP_EMPTY_CAMPAIGN_ID"
	CodeMapPaused          Code = "MAP_PAUSED"

	// Stroke errors
	CodeStrokeTooShort     Code = "STROKE_TOO_SHORT"
	CodeStrokeNotFound     Code = "STROKE_NOT_FOUND"
	CodeStrokeNotPermitted Code = "STROKE_NOT_PERMITTED"

	// Token errors
	CodeTokenNotFound     Code = "TOKEN_NOT_FOUND"
	CodeTokenInvalidKind  Code = "TOKEN_INVALID_KIND"
	CodeTokenNotMovable   Code = "TOKEN_NOT_MOVABLE"

	// Shape errors
	CodeShapeNotFound    Code = "SHAPE_NOT_FOUND"
	CodeShapeInvalidKind Code = "SHAPE_INVALID_KIND"

	// Combat errors
	CodeCombatEmptyOrder Code = "COMBAT_EMPTY_ORDER"
	CodeCombatInactive   Code = "COMBAT_INACTIVE"

	// Library errors
	CodeLibraryEmptyName    Code = "LIBRARY_EMPTY_NAME"
	CodeLibraryEntryMissing Code = "LIBRARY_ENTRY_MISSING"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeMapEmptyCampaignID,
		CodeStrokeTooShort,
		CodeTokenInvalidKind,
		CodeShapeInvalidKind,
		CodeCombatEmptyOrder,
		CodeLibraryEmptyName:
		return http.StatusBadRequest

	// Unauthorized - missing or unverifiable identity
	case CodeGrantMissing,
		CodeGrantInvalid,
		CodeGrantExpired:
		return http.StatusUnauthorized

	// Forbidden - identity known but operation not allowed
	case CodeGrantMismatch,
		CodeGrantForbidden,
		CodeStrokeNotPermitted,
		CodeTokenNotMovable,
		CodeMapPaused:
		return http.StatusForbidden

	// Not found
	case CodeNotFound,
		CodeStrokeNotFound,
		CodeTokenNotFound,
		CodeShapeNotFound,
		CodeLibraryEntryMissing:
		return http.StatusNotFound

	// Conflict - operation valid but state disallows it
	case CodeCombatInactive:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
