// Package store executes compiled statements against a database.
//
// A Container pairs a *sql.DB with the dialect its statements are rendered
// in. Tables run untyped rows through the querysql builder; PersistentStore
// maps a registered struct type onto its table.
//
// # Generated keys
//
// Inserts ignore conflicts. When the dialect supports INSERT ... RETURNING
// the generated key is read from the statement itself and an empty result
// means the row was ignored. Otherwise the insert and the dialect's
// last-insert-id query run on the same connection, and a zero affected-row
// count means the row was ignored.
//
// # Value encoding
//
//   - driver.Valuer fields are handed to the driver unchanged
//   - bools are stored as 0 or 1
//   - structs, maps, slices and arrays are stored as JSON
//   - sql.Scanner fields decode themselves
//
// # Database Configuration
//
// SQLite databases opened through Open use a single connection with WAL
// mode, synchronous=NORMAL, busy_timeout=5000 and foreign_keys=ON.
//
// Truncate and Drop refuse to run unless the container name contains
// "test".
package store
