package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)

	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewBreaker("test", 3, time.Hour)
	failing := func(context.Context) error { return errors.New("boom") }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.Error(t, breaker.Do(ctx, failing))
	}

	assert.True(t, breaker.Open())
	assert.ErrorIs(t, breaker.Do(ctx, failing), ErrBreakerOpen)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	breaker := NewBreaker("test", 3, time.Hour)
	ctx := context.Background()

	failing := func(context.Context) error { return errors.New("boom") }
	ok := func(context.Context) error { return nil }

	assert.Error(t, breaker.Do(ctx, failing))
	assert.Error(t, breaker.Do(ctx, failing))
	assert.NoError(t, breaker.Do(ctx, ok))

	// Two earlier failures no longer count toward the threshold
	assert.Error(t, breaker.Do(ctx, failing))
	assert.Error(t, breaker.Do(ctx, failing))
	assert.False(t, breaker.Open())
}

func TestBreaker_AdmitsCallsAfterCooldown(t *testing.T) {
	breaker := NewBreaker("test", 2, 20*time.Millisecond)
	ctx := context.Background()

	failing := func(context.Context) error { return errors.New("boom") }
	assert.Error(t, breaker.Do(ctx, failing))
	assert.Error(t, breaker.Do(ctx, failing))
	assert.True(t, breaker.Open())

	time.Sleep(30 * time.Millisecond)

	assert.False(t, breaker.Open())
	assert.NoError(t, breaker.Do(ctx, func(context.Context) error { return nil }))
	assert.False(t, breaker.Open())
}
