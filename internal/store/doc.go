// Package store provides the SQLite content database that contentq queries.
//
// Each collection lives in its own table. The _content_info table records,
// per collection, the table name, column layout and checksum of the rows
// that were last imported. Integrity checks compare that checksum with the
// one the manifest expects.
//
// # Column types
//
// Columns are declared as TEXT, INTEGER, BOOLEAN or JSON. The declared type
// drives how values are read back:
//   - BOOLEAN columns come back as bool
//   - JSON columns are decoded into strings, int64s, bools, []any and
//     map[string]any
//   - TEXT comes back as string, INTEGER as int64
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during imports
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Imports replace a collection in a single transaction, so readers see
// either the old rows or the new ones.
package store
