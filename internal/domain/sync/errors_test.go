package sync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	t.Run("nil is a success", func(t *testing.T) {
		assert.Equal(t, OutcomeSuccess, ClassifyFailure(nil))
	})

	t.Run("permanent rejections are fatal", func(t *testing.T) {
		assert.Equal(t, OutcomeFatalFailure, ClassifyFailure(ErrPlatformRejected))
		assert.Equal(t, OutcomeFatalFailure, ClassifyFailure(ErrConflictingIdentity))
		assert.Equal(t, OutcomeFatalFailure, ClassifyFailure(ErrAutoCreateDisabled))
	})

	t.Run("wrapped sentinels keep their class", func(t *testing.T) {
		err := fmt.Errorf("pushing product: %w", ErrPlatformRejected)
		assert.Equal(t, OutcomeFatalFailure, ClassifyFailure(err))

		err = fmt.Errorf("pulling order: %w", ErrPlatformUnavailable)
		assert.Equal(t, OutcomeRetryableFailure, ClassifyFailure(err))
	})

	t.Run("transient conditions are retryable", func(t *testing.T) {
		assert.Equal(t, OutcomeRetryableFailure, ClassifyFailure(ErrPlatformUnavailable))
		assert.Equal(t, OutcomeRetryableFailure, ClassifyFailure(ErrRateLimited))
		assert.Equal(t, OutcomeRetryableFailure, ClassifyFailure(ErrRemoteNotFound))
	})

	t.Run("unrecognized errors default to retryable", func(t *testing.T) {
		assert.Equal(t, OutcomeRetryableFailure, ClassifyFailure(errors.New("something new")))
	})
}
