// Package client implements the one-shot catpoint CLI operations: each one
// dials the panel server, runs a single call and prints the resulting state.
package client
