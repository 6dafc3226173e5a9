// Package ir provides the value types shared by the query builder, the
// content store, and the dump importer.
//
// Every literal in a predicate and every cell of an imported row is an
// IRValue. The set of types is closed (string, int64, float64, bool, null,
// array, object) so that canonical encoding, and therefore collection
// checksums, are deterministic.
//
// Key constraints:
//   - floats are finite and encode in ES6 number form; 2.0 and 2 hash alike
//   - ir imports nothing internal; every other package may import ir
//   - Canonical encoding is RFC 8785 with NFC-normalized strings
package ir
