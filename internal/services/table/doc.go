// Package table contains the map authority boundary.
//
// It hosts the canonical battle-map document for each campaign table and
// serializes every mutation so independent clients can edit optimistically
// and reconcile against snapshots.
package table
