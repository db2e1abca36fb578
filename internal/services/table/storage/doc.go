// Package storage defines persistence contracts for map documents, the map
// library, and the battle log.
//
// These interfaces keep authority orchestration separate from storage
// technology; stored documents are treated as untrusted input and normalized
// after every load.
package storage
