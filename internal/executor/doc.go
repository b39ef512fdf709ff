// Package executor implements a breadth-first GraphQL executor that hands
// each depth's resolver-backed fields to the runtime in one batch.
//
// # Execution model
//
// Fields are either sync or async, as flagged by schema.Field.Async:
//   - Sync fields are read off the parent value with Runtime.ResolveSync and
//     completed immediately. Descending through them does not add depth.
//   - Async fields become AsyncResolveTasks. Every task discovered while
//     expanding one depth is passed to Runtime.BatchResolveAsync in a single
//     call, and their children are queued for the next depth.
//
// For an operation whose deepest chain crosses d async fields,
// BatchResolveAsync is called exactly d times. A runtime backed by
// request-scoped loaders can therefore register all loads of a depth and
// dispatch them as one storage query per loader.
//
// Each task carries its response Path and a selection.Node describing what
// the client selected beneath the field, with fragments, aliases and
// @skip/@include already applied. Resolvers derive storage projections from
// it without seeing the AST.
//
// # Completion and errors
//
// Values complete per the GraphQL rules: lists element by element with
// index-aware paths, leaves through Runtime.SerializeLeafValue, and
// interfaces and unions through Runtime.ResolveType. Errors are located at the
// field's path. Errors that expose Extensions() (such as the ones from
// package errs) carry them into the response. A null or failed Non-Null field
// nullifies its top-level field, and queued tasks under a nullified path are
// dropped before the next batch.
//
// Mutation root fields arrive in one batch in document order; the runtime is
// responsible for resolving them serially.
package executor
