package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("wallet", "Credit", ErrInfrastructure, "record store failure", cause)

	assert.True(t, errors.Is(err, ErrInfrastructure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "wallet.Credit")
}

func TestInfrastructure_WrapsOnce(t *testing.T) {
	assert.NoError(t, Infrastructure("reward", "Grant", nil))

	first := Infrastructure("reward", "Grant", errors.New("timeout"))
	second := Infrastructure("progression", "CompleteModule", first)

	assert.Same(t, first, second)
	assert.True(t, IsRetryable(second))
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", ErrCourseNotFound)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsInsufficientFunds(ErrNoFunds))
	assert.False(t, IsInfrastructure(ErrNoFunds))
}
