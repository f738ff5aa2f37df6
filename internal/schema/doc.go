// Package schema provides the column registry: per record type metadata
// mapping each persisted field to its storage column.
//
// # Registration
//
// Registries come from one of two sources:
//
//   - Reflection: For[T] derives the description from struct T and its `db`
//     tags. The result is memoized per type behind a sync.Once, so concurrent
//     first use builds exactly one registry.
//   - Explicit description: Build(Model) takes a Model assembled by hand or
//     loaded from a declaration file (see internal/modelspec).
//
// Either way the registry is immutable once built.
//
// # Storage types
//
// A column's storage type is the field's explicit override when present,
// otherwise InferStorageType applies this fixed priority:
//
//	integer family (ints, uints, bool) > floating family > text > binary
//	> temporal > any other encodable type (JSON in a BLOB)
//
// # Lookups
//
// Lookup panics on an unknown field identifier. Predicates and sort keys are
// supposed to be written against the same record type as the registry, so a
// miss is a programming error rather than a runtime condition. Find and
// Resolve are the non-panicking forms for identifiers that come from user
// input such as the CLI.
package schema
