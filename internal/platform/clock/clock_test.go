package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_NowWall_ReturnsUTC(t *testing.T) {
	c := New()
	now := c.NowWall()
	assert.Equal(t, time.UTC, now.Location())
}

func TestSystem_NowMono_Increases(t *testing.T) {
	c := New()
	a := c.NowMono()
	time.Sleep(time.Millisecond)
	b := c.NowMono()
	assert.Greater(t, b, a)
}

func TestSystem_Sleep_ReturnsNilWhenUnobstructed(t *testing.T) {
	c := New()
	err := c.Sleep(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
}

func TestSystem_Sleep_ReturnsContextErrImmediatelyForNonPositiveDuration(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sleep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystem_Sleep_InterruptedByContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := c.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonoDelta_ClampsToZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), MonoDelta(100, 50))
	assert.Equal(t, time.Duration(50), MonoDelta(50, 100))
}
