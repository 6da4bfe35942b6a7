package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerScheduler(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var fired int32
	s.Schedule("a", 10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestTimerScheduler_ReplaceAndCancel(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var first, second, cancelled int32
	s.Schedule("a", 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.Schedule("a", 30*time.Millisecond, func() { atomic.AddInt32(&second, 1) })
	s.Schedule("b", 20*time.Millisecond, func() { atomic.AddInt32(&cancelled, 1) })
	assert.Equal(t, 2, s.Pending())
	s.Cancel("b")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled))
	assert.Equal(t, 0, s.Pending())
}
