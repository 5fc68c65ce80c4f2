// Package classifier decides whether a camera image contains a cat.
//
// FakeClassifier flips a coin and stands in for a camera model during
// development. RemoteClassifier asks an HTTP labeling service for image
// labels and retries transient failures behind a circuit breaker.
package classifier
