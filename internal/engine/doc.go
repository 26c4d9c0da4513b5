// Package engine runs compiled programs: a forward-chaining fact engine
// wrapped in a lazily explored choice tree.
//
// ARCHITECTURE:
//
// Forward Engine:
// State holds everything one branch of the search knows: the agenda of
// facts and partial matches still to process, the committed value (or
// excluded values) of every attribute, the candidate values of attributes
// not yet committed, and the join memory. Learn processes exactly one
// agenda item and returns the successor state or a Conflict.
//
// Choice Engine:
// Search owns an arena of choice-tree nodes. The current leaf is stepped
// until its agenda drains; a leaf with deferred attributes turns into a
// branch node with one lazily created child per candidate value (plus a
// "none of these" child when more values could still arrive). Dead ends
// and solutions retire their leaf, pruning exhausted branches and
// collapsing branches left with one child into that child.
//
// CRITICAL PATTERNS:
//
// Persistence:
// State is a value built from persistent maps. Forking a branch copies a
// handful of root pointers; siblings never observe each other's changes.
//
// Confluence:
// The set of solutions does not depend on agenda order. WithShuffle
// randomizes the order to check this; the default FIFO order and
// minimum-attribute branching make runs reproducible.
//
// Single-threaded:
// A Search is driven by its caller one Step at a time. There is no
// internal concurrency; cancellation means no longer calling Step.
package engine
