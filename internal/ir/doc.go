// Package ir provides the ordered document values that make up bandmap
// response payloads.
//
// This package contains type definitions only. It imports nothing internal,
// so every other package can build or inspect response documents without
// circular dependencies.
//
// Key design constraints:
//   - Object preserves insertion order; field order in a response follows
//     the requested field order, never map iteration order
//   - Integers (Int) and fractional numbers (Float) are distinct; identifier
//     fields are always emitted as Int
//   - Null is an explicit value so Value stays a sealed interface
package ir
