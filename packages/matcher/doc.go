// Package matcher compares JSON response bodies against expected patterns.
//
// A Pattern is a JSON-like tree whose nodes are either literals, matched by
// type and value, or type placeholders that accept any value of a kind:
//   - AnyString, AnyNumber, AnyBoolean
//   - AnyObject, AnyArray
//
// Two entry points are provided. MatchDeep requires objects to carry no keys
// beyond the pattern's and arrays to match positionally. MatchPartial ignores
// extra object keys and matches array elements one-to-one in any order.
//
// Both report the first divergence of a depth-first traversal in pattern key
// order and never modify their inputs.
package matcher
