package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qianlnk/mafia/models"
)

var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	games       map[string]*models.GameRecord
	codes       map[string]string
	subscribers map[string]map[chan *models.GameRecord]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:       make(map[string]*models.GameRecord),
		codes:       make(map[string]string),
		subscribers: make(map[string]map[chan *models.GameRecord]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.GameRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("记录为空或缺少ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[rec.Code]; exists {
		return ErrCodeTaken
	}
	if _, exists := s.games[rec.ID]; exists {
		return fmt.Errorf("记录 %s 已存在", rec.ID)
	}

	stored := rec.Clone()
	stored.Version = 1
	s.games[rec.ID] = stored
	s.codes[rec.Code] = rec.ID
	rec.Version = stored.Version
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.games[id]
	if !exists {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) LookupCode(ctx context.Context, code string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.codes[code]
	if !exists {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current, exists := s.games[id]
	if !exists {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrNoChange) {
			return current.Clone(), nil
		}
		return nil, err
	}
	next.Version = current.Version + 1
	s.games[id] = next

	subs := make([]chan *models.GameRecord, 0, len(s.subscribers[id]))
	for ch := range s.subscribers[id] {
		subs = append(subs, ch)
	}
	for _, ch := range subs {
		deliver(ch, next.Clone())
	}
	s.mu.Unlock()

	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.games[id]
	if !exists {
		return ErrNotFound
	}
	delete(s.games, id)
	if s.codes[rec.Code] == id {
		delete(s.codes, rec.Code)
	}
	for ch := range s.subscribers[id] {
		close(ch)
	}
	delete(s.subscribers, id)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, id string) (<-chan *models.GameRecord, error) {
	s.mu.Lock()
	rec, exists := s.games[id]
	if !exists {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	ch := make(chan *models.GameRecord, SubscriptionBuffer)
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[chan *models.GameRecord]struct{})
	}
	s.subscribers[id][ch] = struct{}{}
	// the current state goes first
	ch <- rec.Clone()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id][ch]; ok {
			delete(s.subscribers[id], ch)
			close(ch)
		}
	}()

	return ch, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, subs := range s.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(s.subscribers, id)
	}
	return nil
}
