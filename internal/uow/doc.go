// Package uow owns the per-unit-of-work identity map and the hydrator that
// turns result rows into managed entities.
//
// A UnitOfWork guarantees at most one *Entity per identified row. Hydrating
// a row whose identity is already managed returns the managed instance
// untouched, so in-memory changes survive a re-fetch. Owning associations
// are hydrated as lazy references: uninitialized entities carrying only
// their identifier, registered in the same identity map and populated in
// place when a later row (or an explicit initialize) loads them.
//
// A UnitOfWork is single-owner state. It holds no locks; callers running
// several units of work concurrently give each its own instance, and share
// only the read-only metadata.
package uow
