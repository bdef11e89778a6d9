package chains

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"feelens/pkg/errors"
)

func TestClassifyHTTPStatus(t *testing.T) {
	assert.NoError(t, ClassifyHTTPStatus(http.StatusOK, "ethereum"))

	err := ClassifyHTTPStatus(http.StatusTooManyRequests, "ethereum")
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
	assert.True(t, IsTransient(err))

	err = ClassifyHTTPStatus(http.StatusBadGateway, "ethereum")
	assert.ErrorIs(t, err, errors.ErrTransientFetch)
	assert.True(t, IsTransient(err))

	err = ClassifyHTTPStatus(http.StatusUnauthorized, "ethereum")
	assert.ErrorIs(t, err, errors.ErrFetch)
	assert.False(t, IsTransient(err))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(errors.ErrFetch))
	assert.True(t, IsTransient(errors.Wrap(errors.ErrTransientFetch, "wrapped")))
	assert.True(t, IsTransient(errors.ErrRateLimitExceeded))
}
