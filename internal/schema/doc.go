// Package schema is the Schema Provider: it answers, for a resource, the
// ordered set of addressable API field paths and their primitive types.
//
// Resource item shapes are defined in CUE (resources.cue, embedded). Nested
// URL resources reuse the container field of their parent item, so
// /bands/{band}/people is described by the "people" field of a band.
//
// A collection field set lists the envelope fields first (link, offset,
// limit, total, <plural>, <plural>Count, first, prev, next, last) followed by
// the item fields prefixed with "<plural>.". An item field set lists the item
// fields unprefixed.
//
// Primitive types are integer, number, string, date and dateTime; containers
// are array and object. An unknown type is reported as a server error when
// the field set is built, never at load time, so a single broken resource
// does not take down the others.
package schema
