// Package executor performs the HTTP call described by a RequestSpec.
//
// Every call is bounded by the spec's timeout. The deadline and the transport
// race; whichever settles first decides the outcome and the loser is
// discarded, so a slow transport can never turn a timeout into a pass.
//
// Non-2xx statuses are ordinary captured responses. Only a missed deadline
// (TimeoutError) or a failed exchange (TransportError) is an error.
package executor
