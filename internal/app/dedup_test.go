package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduplicatorClaimsOnce(t *testing.T) {
	d := NewMemoryDeduplicator(time.Minute)
	ctx := context.Background()

	first, err := d.Claim(ctx, "msg_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "msg_1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.Claim(ctx, "msg_2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryDeduplicatorExpires(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(time.Minute)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first, _ := d.Claim(ctx, "msg_1")
	require.True(t, first)

	now = now.Add(59 * time.Second)
	again, _ := d.Claim(ctx, "msg_1")
	assert.False(t, again)

	now = now.Add(time.Second)
	expired, _ := d.Claim(ctx, "msg_1")
	assert.True(t, expired)
}

func TestMemoryDeduplicatorForget(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	ctx := context.Background()

	_, _ = d.Claim(ctx, "msg_1")
	require.NoError(t, d.Forget(ctx, "msg_1"))

	first, err := d.Claim(ctx, "msg_1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRedisDeduplicatorKeyPrefix(t *testing.T) {
	assert.Equal(t, "papermind:webhook:msg_1", NewRedisDeduplicator(nil, "", time.Hour).key("msg_1"))
	assert.Equal(t, "custom:msg_1", NewRedisDeduplicator(nil, " custom: ", time.Hour).key("msg_1"))
}
