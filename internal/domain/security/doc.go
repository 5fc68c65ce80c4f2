// Package security contains core domain types for the security panel.
//
// It defines the arming and alarm statuses with their transition rules, the
// Sensor registry entry, the Snapshot read model and the Actor who issued a
// command. Every type here is a plain value; no I/O happens in this package.
package security
