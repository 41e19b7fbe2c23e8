package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartCancelsSameKey(t *testing.T) {
	r := NewRegistry()

	first, doneFirst := r.Start(context.Background(), Key("s1", "submit"))
	second, doneSecond := r.Start(context.Background(), Key("s1", "submit"))

	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())
	assert.Equal(t, 1, r.Len())

	// finishing the superseded operation must not drop the newer one
	doneFirst()
	assert.Equal(t, 1, r.Len())

	doneSecond()
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, second.Err(), context.Canceled)
}

func TestCancelPrefix(t *testing.T) {
	r := NewRegistry()

	a, _ := r.Start(context.Background(), Key("s1", "list"))
	b, _ := r.Start(context.Background(), Key("s1", "profile"))
	c, doneC := r.Start(context.Background(), Key("s2", "list"))
	defer doneC()

	assert.Equal(t, 2, r.CancelPrefix("s1/"))
	assert.Error(t, a.Err())
	assert.Error(t, b.Err())
	assert.NoError(t, c.Err())

	assert.True(t, r.Cancel(Key("s2", "list")))
	assert.False(t, r.Cancel(Key("s2", "list")))
}

func TestParentCancellation(t *testing.T) {
	r := NewRegistry()
	parent, cancel := context.WithCancel(context.Background())

	ctx, done := r.Start(parent, "k")
	defer done()
	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
