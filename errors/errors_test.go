package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.severity.String())
		})
	}
}

func TestWrap_Format(t *testing.T) {
	err := Wrap(ErrKeyNotFound, "sessionRepo", "Load", "read session key")
	assert.EqualError(t, err, "sessionRepo.Load: read session key failed: key not found")
	assert.True(t, stderrors.Is(err, ErrKeyNotFound))

	assert.Nil(t, Wrap(nil, "c", "m", "a"))
	assert.Nil(t, WrapAs(CategoryNetwork, nil, "c", "m", "a"))
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil", nil, CategoryAPI},
		{"classified", WrapAs(CategoryCart, ErrCartVersionConflict, "cart", "Update", "cas"), CategoryCart},
		{"classified survives wrapping", fmt.Errorf("outer: %w", WrapAs(CategoryML, ErrSourceUnavailable, "r", "m", "a")), CategoryML},
		{"timeout", ErrRequestTimeout, CategoryNetwork},
		{"store down", ErrStoreUnavailable, CategoryNetwork},
		{"session expired", ErrSessionExpired, CategorySession},
		{"corrupted", fmt.Errorf("load: %w", ErrSessionCorrupted), CategorySession},
		{"token", ErrTokenMalformed, CategoryAuthentication},
		{"ml source", ErrSourceUnavailable, CategoryML},
		{"cart empty", ErrCartEmpty, CategoryCart},
		{"base required", ErrBaseRequired, CategoryValidation},
		{"unknown", stderrors.New("mystery"), CategoryAPI},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, CategoryOf(test.err))
		})
	}
}

func TestCategory_IsInfrastructure(t *testing.T) {
	assert.True(t, CategoryNetwork.IsInfrastructure())
	assert.True(t, CategoryAPI.IsInfrastructure())
	assert.True(t, CategoryML.IsInfrastructure())
	assert.True(t, CategorySession.IsInfrastructure())
	assert.False(t, CategoryValidation.IsInfrastructure())
	assert.False(t, CategoryCart.IsInfrastructure())
	assert.False(t, CategoryOrdering.IsInfrastructure())
	assert.False(t, CategoryAuthentication.IsInfrastructure())
}

func TestCategory_DefaultMaxRetries(t *testing.T) {
	assert.Equal(t, 3, CategoryAPI.DefaultMaxRetries())
	assert.Equal(t, 5, CategoryNetwork.DefaultMaxRetries())
	assert.Equal(t, 2, CategoryML.DefaultMaxRetries())
	assert.Equal(t, 1, CategoryAuthentication.DefaultMaxRetries())
	assert.Equal(t, 0, CategoryValidation.DefaultMaxRetries())
	assert.Equal(t, 1, CategorySession.DefaultMaxRetries())
}

func TestDefaultRecoverable(t *testing.T) {
	assert.False(t, DefaultRecoverable("MALFORMED_TOKEN"))
	assert.False(t, DefaultRecoverable("CORRUPTED_SESSION"))
	assert.False(t, DefaultRecoverable("UNAUTHORIZED"))
	assert.True(t, DefaultRecoverable("NETWORK_TIMEOUT"))
	assert.True(t, DefaultRecoverable(""))
}
