// Package value owns the typed front-panel value model and its binary codec.
//
// Ownership boundary:
// - Numeric/Text/Bool/Array/Record tagged union
// - self-describing encode/decode
// - checked record accessors
package value
