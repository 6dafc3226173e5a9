// Package integrity guards collection queries behind a once-per-process
// integrity check.
//
// In a server context (a request handle in the context and server mode
// enabled), the first query against a collection verifies that the stored
// rows match the manifest checksum before it runs. The outcome is cached for
// the lifetime of the Gate:
//
//	Unchecked -> Valid    verifier returned true
//	Unchecked -> Invalid  verifier returned false or failed
//
// Concurrent first queries for the same collection share one verification.
// Different collections verify independently. A failed verification is
// logged and counted but never fails the query; the query runs against
// whatever rows the store holds.
//
// With WithRetryOnFailure, a failed verification leaves the collection
// Unchecked so the next query tries again.
package integrity
