// Package mqtt wraps the paho client with a retrying connect and
// context-aware publish and subscribe calls.
package mqtt
