// Package store contains the entity store bounded context: the Customer,
// Order and Product aggregates reconstructed from flat bulk-export records.
//
// Every aggregate is keyed by its platform id and scoped to a shop. Creation
// happens on first sighting of the top-level record; every later sighting of
// the same id merges incoming fields last-write-wins, including across
// separate export runs, which is what makes ingestion idempotent and safely
// re-runnable. Child collections never contain duplicate child ids.
package store
