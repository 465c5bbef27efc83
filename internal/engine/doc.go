// Package engine executes resource requests against the store.
//
// A request runs in up to three phases:
//
//  1. Ancestor lookups resolve every container named in the URL
//     (/bands/{band}/people) to its primary id, trying the primary id
//     first for numeric targets and the secondary id otherwise.
//  2. When a collection is sorted by fields of nested entities, a single
//     flatten/group/order query (FSL) computes the page of root ids and
//     the filtered total.
//  3. The requested entity tree is split into root-to-leaf chains. Each
//     chain compiles to one statement; the statements run concurrently
//     and their rows fold into one result tree.
//
// Each leaf folds into its own slot, so the only state shared between
// leaf goroutines is the request's issue queue. Slots are merged in leaf
// order after every leaf has finished, which keeps the result independent
// of completion order.
package engine
