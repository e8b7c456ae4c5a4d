package suppress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func TestWindow_ZeroValue(t *testing.T) {
	var w Window
	assert.False(t, w.IsSuppressed(at(0)))
	assert.False(t, w.IsSuppressed(time.Now()))
	_, ok := w.Until()
	assert.False(t, ok)
	assert.Zero(t, w.Remaining(at(0)))
}

func TestWindow_Boundaries(t *testing.T) {
	var w Window
	w.Suppress(at(100), 300*time.Second)

	tests := []struct {
		now  int
		want bool
	}{
		{99, true},
		{100, true},
		{150, true},
		{399, true},
		{400, false},
		{401, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.IsSuppressed(at(tt.now)), "t=%d", tt.now)
	}

	until, ok := w.Until()
	assert.True(t, ok)
	assert.True(t, until.Equal(at(400)))
	assert.Equal(t, 250*time.Second, w.Remaining(at(150)))
	assert.Zero(t, w.Remaining(at(401)))
}

func TestWindow_OverwritesDoesNotStack(t *testing.T) {
	var w Window
	w.Suppress(at(0), 300*time.Second)
	w.Suppress(at(10), 5*time.Second)

	assert.True(t, w.IsSuppressed(at(14)))
	assert.False(t, w.IsSuppressed(at(15)), "shorter later window replaces the longer one")
}

func TestWindow_DeadlineAtUnixEpoch(t *testing.T) {
	var w Window
	zero := time.Unix(0, 0)
	w.Suppress(zero.Add(-time.Minute), time.Minute)

	assert.True(t, w.IsSuppressed(zero.Add(-time.Nanosecond)))
	assert.False(t, w.IsSuppressed(zero))
	until, ok := w.Until()
	assert.True(t, ok)
	assert.True(t, until.Equal(zero))
	assert.Equal(t, time.Second, w.Remaining(zero.Add(-time.Second)))
}

func TestWindow_Concurrent(t *testing.T) {
	var w Window
	var wg sync.WaitGroup
	now := time.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.Suppress(now, time.Duration(i)*time.Millisecond)
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = w.IsSuppressed(now)
				_, _ = w.Until()
			}
		}()
	}
	wg.Wait()

	assert.True(t, w.IsSuppressed(now.Add(998*time.Millisecond)))
}
