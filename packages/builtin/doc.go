// Package builtin provides the functions available inside {{ }} expressions
// of suite files, such as {{uuid()}} or {{randomInt(1, 100)}}.
package builtin
