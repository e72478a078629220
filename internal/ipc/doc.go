// Package ipc implements JSON-RPC over a Unix domain socket between the
// clipforge CLI and the clipforged daemon. Control failures travel as
// stable error codes in responses so clients can react without parsing
// error strings.
package ipc
