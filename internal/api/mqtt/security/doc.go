// Package security turns MQTT command topics into alarm engine calls.
package security
