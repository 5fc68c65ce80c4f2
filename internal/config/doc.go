// Package config defines the settings shared by the catpoint binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Config holds the gRPC server address, the storage backend, the classifier,
// the optional MQTT broker and the optional metrics listener.
package config
