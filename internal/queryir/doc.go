// Package queryir is the typed representation of a collection query.
//
// The content query builder accumulates a Select; the querysql package
// renders it. Keeping the representation separate from rendering means the
// builder never touches SQL text and the renderer never sees unvalidated
// input.
//
//	[QueryBuilder] -> [queryir.Select] -> [querysql.Statement] -> [store]
//
// Query and Predicate are sealed interfaces (marker method pattern). Only
// types in this package implement them, so renderers can switch over them
// exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	case Between:
//	case IsNull:
//	case Like:
//	}
//
// Literal values are ir.IRValue; callers convert at the boundary with
// ir.FromGo. LIKE patterns are always IRString: NewPredicate turns a number
// or bool pattern into its text form.
//
// Predicates in Select.Filter are a conjunction evaluated in slice order.
// There is no OR: the builder has no way to express one.
package queryir
