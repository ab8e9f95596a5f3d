// Package membership coordinates role transitions on collections.
//
// Every transition follows the same shape: fetch the current record,
// re-resolve the invoker's role from that fresh copy, mutate a clone,
// and write the full membership sets back under an optimistic guard on
// the record's update time. A losing write is retried from the top; a
// post-write verification failure rolls the sets back and denies.
package membership
