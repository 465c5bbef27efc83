// Package apierr defines the error and warning taxonomy of the bandmap API.
//
// Every failure that reaches a caller is an *Error carrying an HTTP status,
// a stable kebab-case code and a human-readable message:
//
//	not-found            404  ancestor, item or filtered collection is empty
//	invalid-filter       400  filter syntax or operand type errors
//	invalid-arguments    400  malformed sort tokens, bad limit/offset
//	nothing-requested    400  field selection resolved to nothing
//	not-implemented      501  filter scope spans more than the root entity
//	server-error         500  catalog/schema invariant violations, storage
//
// Non-fatal problems (unrecognized or duplicate field tokens, incompatible
// arguments) are queued on a request-scoped Issues value and attached to
// an otherwise successful response.
//
// ERROR PRECEDENCE:
//
// Only the first raised error determines the response status and code. Any
// other errors raised while the request was in flight are still listed in
// the response body, after the deciding one.
package apierr
