// Package model holds the data shared by the builder, the executor and the
// reporter: the request being sent and the response that came back.
package model
