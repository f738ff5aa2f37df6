// Package value normalizes Go values into the canonical forms bound to SQL
// statement parameters.
//
// Predicate literals, IN-list elements, and record fields all pass through
// Normalize before they reach a statement. Normalization collapses the many
// Go integer and float widths into int64 and float64 so that compiling the same
// predicate always yields identical bindings.
//
// Values implementing driver.Valuer are left untouched; the database driver
// encodes them at execution time.
package value
