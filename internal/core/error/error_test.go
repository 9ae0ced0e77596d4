package errx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedisNil(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))
}

func TestWrapRedisMissingKey(t *testing.T) {
	wrapped := WrapRedis(redis.Nil)
	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusNotFound, wrapped.Status)
	assert.Equal(t, RedisNotFoundMessage, wrapped.Message)
	assert.True(t, errors.Is(wrapped, redis.Nil))
}

func TestWrapRedisBackendFailure(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := WrapRedis(cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusBadGateway, wrapped.Status)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestAppErrorAs(t *testing.T) {
	var appErr *AppError
	err := Internal(errors.New("boom"))
	require.True(t, errors.As(error(err), &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}
