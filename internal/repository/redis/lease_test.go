package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseKey(t *testing.T) {
	assert.Equal(t, "printqueue:lease:p-1", leaseKey("p-1"))
}

func TestNewLease_UniqueTokens(t *testing.T) {
	a := NewLease(nil)
	b := NewLease(nil)

	assert.NotEmpty(t, a.Token())
	assert.NotEqual(t, a.Token(), b.Token())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "redis://:bad@host:port/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
}
