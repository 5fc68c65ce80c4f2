// Package security exposes the alarm engine over gRPC.
//
// The service is described by hand with protobuf well-known types as
// messages, so no generated code is needed on either side.
package security
