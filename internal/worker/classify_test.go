package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want ErrorKind
	}{
		{"too many requests", 429, KindTransient},
		{"internal error", 500, KindTransient},
		{"bad gateway", 502, KindTransient},
		{"service unavailable", 503, KindTransient},
		{"bad request", 400, KindPermanent},
		{"unauthorized", 401, KindPermanent},
		{"not found", 404, KindPermanent},
		{"conflict", 409, KindPermanent},
		{"unprocessable", 422, KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StatusError{Code: tt.code}
			assert.Equal(t, tt.want, Classify(err))
		})
	}
}

func TestClassifyWrappedStatusError(t *testing.T) {
	err := fmt.Errorf("push article: %w", &StatusError{Code: 503, Body: "maintenance"})
	assert.Equal(t, KindTransient, Classify(err))
}

func TestClassifyNetworkErrors(t *testing.T) {
	assert.Equal(t, KindTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindTransient, Classify(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}))
	assert.Equal(t, KindTransient, Classify(syscall.ECONNRESET))
	assert.Equal(t, KindTransient, Classify(errors.New("Get \"http://esl\": dial tcp: connection refused")))
	assert.Equal(t, KindTransient, Classify(errors.New("lookup esl.internal: no such host")))
}

func TestClassifyUnknownFailsClosed(t *testing.T) {
	assert.Equal(t, KindPermanent, Classify(errors.New("malformed payload")))
	assert.Equal(t, KindPermanent, Classify(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&StatusError{Code: 404}))
	assert.True(t, IsNotFound(fmt.Errorf("delete: %w", &StatusError{Code: 404})))
	assert.False(t, IsNotFound(&StatusError{Code: 400}))
	assert.False(t, IsNotFound(errors.New("not found")))
}
