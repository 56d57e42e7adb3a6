// Package env resolves {{...}} expressions in suite files.
//
// Three forms are recognised:
//   - {{name}}: a suite variable or a value captured from an earlier case
//   - {{$NAME}}: an OS environment variable
//   - {{fn(args)}}: a built-in function such as uuid() or cnpj()
//
// Variables can also come from a .env file next to the suite.
package env
