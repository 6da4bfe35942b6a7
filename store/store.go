package store

import (
	"context"
	"errors"

	"github.com/qianlnk/mafia/models"
)

var (
	// ErrNotFound is returned when a session id or lobby code is unknown.
	ErrNotFound = errors.New("记录不存在")
	// ErrCodeTaken is returned by Create when the lobby code is already indexed.
	ErrCodeTaken = errors.New("房间码已被占用")
	// ErrNoChange may be returned by an UpdateFunc to abort the write without error.
	ErrNoChange = errors.New("记录未变化")
)

// UpdateFunc mutates the latest copy of a record. It can be invoked more than once when a
// backend retries on a concurrent write, so it must not have side effects.
type UpdateFunc func(rec *models.GameRecord) error

// SessionStore 共享会话存储
//
// Writes from one caller are applied in order. Update is an atomic read-modify-write that
// bumps the record version and notifies subscribers.
type SessionStore interface {
	// Create stores a new record and indexes its lobby code.
	Create(ctx context.Context, rec *models.GameRecord) error
	// Get returns a copy of the record.
	Get(ctx context.Context, id string) (*models.GameRecord, error)
	// LookupCode resolves a lobby code to a session id.
	LookupCode(ctx context.Context, code string) (string, error)
	// Update applies fn to the latest record and returns the stored result.
	// If fn returns ErrNoChange, nothing is written and the current record is returned.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.GameRecord, error)
	// Delete removes the record and its code index.
	Delete(ctx context.Context, id string) error
	// Subscribe delivers the record after every change until ctx is done.
	// The channel is closed when the subscription ends.
	Subscribe(ctx context.Context, id string) (<-chan *models.GameRecord, error)
	Close() error
}

// SubscriptionBuffer is the channel capacity of a subscription.
const SubscriptionBuffer = 16

// deliver pushes rec to ch, dropping the oldest pending record when the subscriber lags.
// Subscribers only care about the latest state.
func deliver(ch chan *models.GameRecord, rec *models.GameRecord) {
	for {
		select {
		case ch <- rec:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
