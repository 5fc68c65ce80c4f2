// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the security panel with call timeouts and
// a helper that detects the current system actor (hostname/username), sent
// along with every call for the server's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
