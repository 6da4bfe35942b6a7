package services

import (
	"sync"
	"time"
)

// Scheduler 每个会话一个可取消的阶段计时器
type Scheduler interface {
	// Schedule 设置会话的计时器，替换已有的计时器
	Schedule(sessionID string, d time.Duration, fn func())
	// Cancel 取消会话的计时器
	Cancel(sessionID string)
	// Stop 取消所有计时器
	Stop()
}

// TimerScheduler 基于 time.AfterFunc 的计时器
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerScheduler 创建计时器
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[string]*time.Timer),
	}
}

func (s *TimerScheduler) Schedule(sessionID string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// 计时器已被替换或取消
		if s.timers[sessionID] != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, sessionID)
		s.mu.Unlock()
		fn()
	})
	s.timers[sessionID] = t
}

func (s *TimerScheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending 已设置计时器的会话数
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
