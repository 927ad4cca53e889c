package greq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(cause, CategoryNetwork, "failed to execute request").
		WithContext("url", "http://example.com").
		WithContext("attempt", 2).
		Retryable().
		Build()

	assert.Equal(t, "[network] failed to execute request: connection refused", err.Error())
	assert.Equal(t, CategoryNetwork, err.Category())
	assert.Equal(t, "failed to execute request", err.Message())
	assert.True(t, err.Retryable())
	assert.ErrorIs(t, err, cause)

	url, ok := err.Context().GetString("url")
	require.True(t, ok)
	assert.Equal(t, "http://example.com", url)

	_, ok = err.Context().GetString("attempt")
	assert.False(t, ok, "non-string values are not returned by GetString")
	attempt, ok := err.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, attempt)

	assert.Equal(t, "[validation] bad input", NewError(CategoryValidation, "bad input").Build().Error())
}

func TestErrorBuildSnapshotsContext(t *testing.T) {
	b := NewError(CategoryConfig, "invalid").WithContext("field", "a")
	first := b.Build()
	b.WithContext("field", "b")
	second := b.Build()

	f, _ := first.Context().GetString("field")
	s, _ := second.Context().GetString("field")
	assert.Equal(t, "a", f)
	assert.Equal(t, "b", s)
}

func TestErrorContextNil(t *testing.T) {
	var c ErrorContext
	_, ok := c.Get("missing")
	assert.False(t, ok)
	c = c.Set("k", "v")
	v, ok := c.GetString("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestErrorMatchingHelpers(t *testing.T) {
	wrapped := fmt.Errorf("reading: %w", ErrBodyConsumed)

	assert.True(t, errors.Is(wrapped, ErrBodyConsumed))
	assert.True(t, errors.Is(NewError(CategoryBodyConsumed, "body has already been read").Build(), ErrBodyConsumed))
	assert.False(t, errors.Is(NewError(CategoryBodyConsumed, "other").Build(), ErrBodyConsumed))

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CategoryBodyConsumed, e.Category())
	assert.True(t, HasCategory(wrapped, CategoryBodyConsumed))
	assert.False(t, HasCategory(wrapped, CategoryDecode))

	plain := errors.New("plain")
	_, ok = AsError(plain)
	assert.False(t, ok)
	assert.False(t, HasCategory(plain, CategoryInternal))
	assert.Equal(t, CategoryInternal, GetCategory(plain))
	assert.Equal(t, CategoryBodyConsumed, GetCategory(wrapped))
}

func TestConvenienceConstructors(t *testing.T) {
	assert.True(t, networkError("x").Build().Retryable())
	assert.False(t, authError("x").Build().Retryable())
	assert.Equal(t, CategoryEncoding, encodingError("x").Build().Category())
	assert.Equal(t, CategoryDecode, decodeError("x").Build().Category())
	assert.Equal(t, CategoryValidation, validationError("x").Build().Category())
}
