// Package capture pulls values out of a captured response so later cases
// in a suite can reference them as {{name}} or {{caseName.name}}.
//
// A capture source is one of:
//   - status
//   - duration (milliseconds)
//   - header:Name
//   - body (the raw body)
//   - body.<path> or a bare <path>, evaluated as a gjson path
package capture
