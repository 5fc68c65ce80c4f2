// Package codec converts panel domain values to and from protobuf Struct
// messages.
//
// The same representation is used on the wire by the gRPC transport and on
// disk by the file repository, so a state file can be inspected with the
// same tooling as an RPC response.
package codec
