// Package term provides the hash-consed term store.
//
// Every ground value the engine handles is a Data handle. Integers are
// unboxed into the handle; every other value lives in a Store and is
// canonicalized on the way in, so two handles are equal (==) exactly when
// the values they stand for are structurally equal.
//
// Key constraints:
//   - Handles are only meaningful against the Store that produced them
//   - The store only grows; there is no deletion
//   - Compare orders handles without decoding them
package term
