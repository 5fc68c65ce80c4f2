package classifier

import (
	"context"
	"image"
	"math/rand"
)

// Classifier reports whether an image shows a cat with at least the given
// confidence, expressed in percent (0-100).
type Classifier interface {
	ImageContainsCat(ctx context.Context, img image.Image, confidenceThreshold float32) (bool, error)
}

// FakeClassifier returns a random answer for every image.
type FakeClassifier struct{}

// NewFakeClassifier creates a FakeClassifier.
func NewFakeClassifier() *FakeClassifier {
	return new(FakeClassifier)
}

// ImageContainsCat returns true about half of the time.
func (*FakeClassifier) ImageContainsCat(context.Context, image.Image, float32) (bool, error) {
	//nolint:gosec // Not security sensitive, the answer is meant to be arbitrary.
	return rand.Intn(2) == 0, nil
}
