package broker

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestShouldRetryProperty exercises §8 invariant 3's failure-path half: a
// call is eligible for another attempt iff retry was requested and the
// observed retry_count has not yet reached the configured ceiling.
func TestShouldRetryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("retry iff requested and below max", prop.ForAll(
		func(retryCount, maxRetries int, retry bool) bool {
			got := shouldRetry(retryCount, maxRetries, retry)
			want := retry && retryCount < maxRetries
			return got == want
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
		gen.Bool(),
	))

	properties.Property("never retries once retry_count reaches max_retries", prop.ForAll(
		func(maxRetries int) bool {
			return !shouldRetry(maxRetries, maxRetries, true)
		},
		gen.IntRange(0, 50),
	))

	properties.Property("retry=false always dead-letters regardless of retry_count", prop.ForAll(
		func(retryCount, maxRetries int) bool {
			return !shouldRetry(retryCount, maxRetries, false)
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
