// Package ranges expands variable range specifications into value sequences
// and merges several sequences into the assignments an expression is
// evaluated against.
//
// # Range specifications
//
// A spec has the form name:start:step:end, for example "x:0:0.5:2", which
// expands to [0 0.5 1 1.5 2]. Each generated value is rounded to as many
// decimal places as the step has, and the rounded value is the base for the
// next step. This keeps accumulated floating point drift out of the
// sequence: "x:0:0.1:0.3" yields exactly [0 0.1 0.2 0.3].
//
// # Merging
//
// A Set holds the ranges declared by one request in declaration order.
// Merge combines them:
//
//	GRID  x=[1 2], y=[10 20 30]  → (1,10) (1,20) (1,30) (2,10) (2,20) (2,30)
//	LIST  x=[1 2 3], y=[4 5 6]   → (1,4) (2,5) (3,6)
//
// GRID is the cartesian product with the last declared variable varying
// fastest. LIST pairs values positionally and requires equal lengths. With
// a single variable both kinds yield one assignment per value.
//
// The merged result is computed lazily: Merged.Len is O(1) and Merged.At
// decodes an index into an Assignment on demand, so a large grid never has
// to be materialized to be counted.
//
// # Ownership
//
// A Set and everything derived from it belong to a single request. Nothing
// in this package is global or safe for concurrent mutation; concurrent
// requests each build their own Set.
package ranges
