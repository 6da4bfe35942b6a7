package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qianlnk/mafia/models"
	"github.com/qianlnk/mafia/store"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func noSleep(ctx context.Context, d time.Duration) error { return nil }

// playingRecord builds a game in progress where every id in roles is a living human.
func playingRecord(phase models.Phase, roles map[string]models.Role) *models.GameRecord {
	rec := &models.GameRecord{
		ID:               "game",
		Code:             "ABCD",
		Status:           models.StatusPlaying,
		Phase:            phase,
		Day:              1,
		Players:          make(map[string]*models.Player),
		Roles:            make(map[string]models.Role),
		Actions:          make(map[string]string),
		DetectiveResults: make(map[string]bool),
		Events:           []string{},
	}
	for id, role := range roles {
		rec.Players[id] = &models.Player{Name: strings.ToUpper(id), UID: id, Alive: true, Connected: true, Ready: true}
		rec.Roles[id] = role
	}
	for id := range roles {
		rec.Host = id
		break
	}
	return rec
}

// fakeScheduler records timers and fires them on demand.
type fakeScheduler struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	fns       map[string]func()
	cancelled map[string]int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		durations: make(map[string]time.Duration),
		fns:       make(map[string]func()),
		cancelled: make(map[string]int),
	}
}

func (f *fakeScheduler) Schedule(sessionID string, d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[sessionID] = d
	f.fns[sessionID] = fn
}

func (f *fakeScheduler) Cancel(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.durations, sessionID)
	delete(f.fns, sessionID)
	f.cancelled[sessionID]++
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations = make(map[string]time.Duration)
	f.fns = make(map[string]func())
}

func (f *fakeScheduler) pending(sessionID string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[sessionID]
	return d, ok
}

// fire runs the pending timer of a session and reports whether one was pending.
func (f *fakeScheduler) fire(sessionID string) bool {
	f.mu.Lock()
	fn, ok := f.fns[sessionID]
	delete(f.fns, sessionID)
	delete(f.durations, sessionID)
	f.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

type collectingSink struct {
	mu      sync.Mutex
	results []*models.GameResult
}

func (s *collectingSink) Submit(result *models.GameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *collectingSink) all() []*models.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.GameResult(nil), s.results...)
}

type testEnv struct {
	store     *store.MemoryStore
	scheduler *fakeScheduler
	sink      *collectingSink
	rooms     *RoomManager
}

func newTestEnv(t *testing.T, seed int64) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     store.NewMemoryStore(),
		scheduler: newFakeScheduler(),
		sink:      &collectingSink{},
	}
	env.rooms = NewRoomManager(Options{
		Store:       env.store,
		Rand:        NewRand(seed),
		Scheduler:   env.scheduler,
		Results:     env.sink,
		MaxPlayers:  DefaultMaxPlayers,
		AutoResolve: true,
		Now:         fixedNow,
		Sleep:       noSleep,
	})
	t.Cleanup(func() { env.store.Close() })
	return env
}

func (env *testEnv) get(t *testing.T, sessionID string) *models.GameRecord {
	t.Helper()
	rec, err := env.store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return rec
}

// idsWithRole returns the players holding role, sorted.
func idsWithRole(rec *models.GameRecord, role models.Role) []string {
	var ids []string
	for id, r := range rec.Roles {
		if r == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
