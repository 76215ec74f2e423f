package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/aicli/types"
)

func TestContextHelpers(t *testing.T) {
	ctx := TestContext(t)
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	assert.ErrorIs(t, CancelledContext().Err(), context.Canceled)
}

func TestAssertExtension(t *testing.T) {
	req := &types.GenerateRequest{}
	req.Set("log_id", "req_1")

	AssertExtension(t, req, "log_id", "req_1")
	AssertNoExtension(t, req, "cache_key")
}

func TestWaitFor(t *testing.T) {
	start := time.Now()
	assert.True(t, WaitFor(func() bool { return time.Since(start) > 20*time.Millisecond }, time.Second))
	assert.False(t, WaitFor(func() bool { return false }, 20*time.Millisecond))
}

func TestJSONHelpers(t *testing.T) {
	m := MustParseJSON[map[string]any](MustJSON(map[string]any{"a": 1}))
	assert.Equal(t, 1.0, m["a"])
	assert.Panics(t, func() { MustParseJSON[int]("x") })
}
