package mq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	assert.Equal(t, 5*time.Second, bucketFor(0))
	assert.Equal(t, 5*time.Second, bucketFor(5*time.Second))
	assert.Equal(t, 30*time.Second, bucketFor(6*time.Second))
	assert.Equal(t, 30*time.Second, bucketFor(20*time.Second))
	assert.Equal(t, 2*time.Minute, bucketFor(time.Minute))
	assert.Equal(t, 5*time.Minute, bucketFor(4*time.Minute))
	// Delays beyond the largest bucket cap at the largest bucket.
	assert.Equal(t, 5*time.Minute, bucketFor(time.Hour))
}

func TestRetryRoutingKey(t *testing.T) {
	assert.Equal(t, "retry.5s", retryRoutingKey(5*time.Second))
	assert.Equal(t, "retry.120s", retryRoutingKey(2*time.Minute))
}
