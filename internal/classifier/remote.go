package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/oshokin/catpoint/internal/logger"
)

// labelsPath is the endpoint of the labeling service.
const labelsPath = "/v1/labels"

// catLabel is the label name that marks a cat, compared case-insensitively.
const catLabel = "cat"

const (
	// breakerFailures is the number of consecutive failures that opens the breaker.
	breakerFailures = 5
	// breakerOpenTimeout is how long the breaker stays open before probing again.
	breakerOpenTimeout = 30 * time.Second
	// initialRetryInterval is the first backoff delay.
	initialRetryInterval = 200 * time.Millisecond
)

var (
	// ErrNilImage is returned when no image is provided.
	ErrNilImage = errors.New("image is required")
	// errServerFailure marks a retryable 5xx answer from the labeling service.
	errServerFailure = errors.New("labeling service failure")
	// errRejected marks a non-retryable 4xx answer from the labeling service.
	errRejected = errors.New("labeling service rejected request")
)

// RemoteOptions configures a RemoteClassifier.
type RemoteOptions struct {
	// BaseURL is the root URL of the labeling service.
	BaseURL string
	// Timeout bounds a single HTTP call.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first failed call.
	MaxRetries int
}

// RemoteClassifier calls an HTTP labeling service.
type RemoteClassifier struct {
	// client is the configured resty client.
	client *resty.Client
	// breaker stops calling a failing service for a while.
	breaker *gobreaker.CircuitBreaker
	// maxRetries is the number of retries per classification.
	maxRetries int
}

// labelsRequest is the JSON body sent to the labeling service.
type labelsRequest struct {
	// Image is the base64-encoded PNG image.
	Image string `json:"image"`
	// MinConfidence filters out labels below this percentage.
	MinConfidence float32 `json:"min_confidence"`
}

// labelsResponse is the JSON body returned by the labeling service.
type labelsResponse struct {
	Labels []label `json:"labels"`
}

type label struct {
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
}

// NewRemoteClassifier creates a classifier for the service at opts.BaseURL.
func NewRemoteClassifier(opts RemoteOptions) *RemoteClassifier {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json")

	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "classifier",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// A rejected request says nothing about the service health.
			return err == nil || errors.Is(err, errRejected)
		},
	})

	return &RemoteClassifier{
		client:     client,
		breaker:    breaker,
		maxRetries: max(opts.MaxRetries, 0),
	}
}

// ImageContainsCat sends the image to the labeling service and looks for a
// cat label at or above confidenceThreshold.
func (c *RemoteClassifier) ImageContainsCat(
	ctx context.Context,
	img image.Image,
	confidenceThreshold float32,
) (bool, error) {
	if img == nil {
		return false, ErrNilImage
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return false, fmt.Errorf("encode image: %w", err)
	}

	request := &labelsRequest{
		Image:         base64.StdEncoding.EncodeToString(buf.Bytes()),
		MinConfidence: confidenceThreshold,
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchLabels(ctx, request)
	})
	if err != nil {
		return false, fmt.Errorf("classify image: %w", err)
	}

	labels, _ := result.([]label)

	for _, l := range labels {
		if strings.EqualFold(l.Name, catLabel) && l.Confidence >= confidenceThreshold {
			return true, nil
		}
	}

	return false, nil
}

// fetchLabels posts the request, retrying transport errors and 5xx answers.
func (c *RemoteClassifier) fetchLabels(ctx context.Context, request *labelsRequest) ([]label, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryInterval

	var (
		labels  []label
		attempt int
	)

	operation := func() error {
		attempt++

		var response labelsResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(request).
			SetResult(&response).
			Post(labelsPath)
		if err != nil {
			logger.WarnKV(ctx, "Classifier call failed", "attempt", attempt, "error", err)

			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}

			return err
		}

		switch {
		case resp.StatusCode() >= http.StatusInternalServerError:
			logger.WarnKV(ctx, "Classifier returned server error", "attempt", attempt, "status", resp.StatusCode())

			return fmt.Errorf("%w: %s", errServerFailure, resp.Status())
		case resp.IsError():
			return backoff.Permanent(fmt.Errorf("%w: %s", errRejected, resp.Status()))
		}

		labels = response.Labels

		return nil
	}

	//nolint:gosec // maxRetries is clamped to be non-negative.
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, retryPolicy); err != nil {
		return nil, err
	}

	return labels, nil
}
