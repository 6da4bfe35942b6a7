package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/db"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
	"google.golang.org/api/option"
)

var _ SessionStore = (*FirebaseStore)(nil)

// FirebaseStore keeps sessions in the Firebase Realtime Database under
// "games/{id}" with the code index under "codes/{code}".
// The admin SDK has no change listeners, so subscriptions poll.
type FirebaseStore struct {
	client       *db.Client
	pollInterval time.Duration
}

// NewFirebaseStore creates a Realtime Database client from a service account file.
func NewFirebaseStore(ctx context.Context, databaseURL, credentialsPath string, pollInterval time.Duration) (*FirebaseStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	return newFirebaseStore(ctx, &firebase.Config{DatabaseURL: databaseURL}, pollInterval, opts...)
}

func newFirebaseStore(ctx context.Context, config *firebase.Config, pollInterval time.Duration, opts ...option.ClientOption) (*FirebaseStore, error) {
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Firebase 应用失败: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取 Realtime Database 客户端失败: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &FirebaseStore{client: client, pollInterval: pollInterval}, nil
}

func (s *FirebaseStore) gameRef(id string) *db.Ref {
	return s.client.NewRef("games/" + id)
}

func (s *FirebaseStore) codeRef(code string) *db.Ref {
	return s.client.NewRef("codes/" + code)
}

func (s *FirebaseStore) Create(ctx context.Context, rec *models.GameRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("记录为空或缺少ID")
	}

	err := s.codeRef(rec.Code).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var existing string
		if err := node.Unmarshal(&existing); err != nil {
			return nil, err
		}
		if existing != "" {
			return nil, ErrCodeTaken
		}
		return rec.ID, nil
	})
	if err != nil {
		if errors.Is(err, ErrCodeTaken) {
			return ErrCodeTaken
		}
		return fmt.Errorf("占用房间码失败: %w", err)
	}

	stored := rec.Clone()
	stored.Version = 1
	if err := s.gameRef(rec.ID).Set(ctx, stored); err != nil {
		_ = s.codeRef(rec.Code).Delete(ctx)
		return fmt.Errorf("保存会话失败: %w", err)
	}
	rec.Version = stored.Version
	return nil
}

func (s *FirebaseStore) Get(ctx context.Context, id string) (*models.GameRecord, error) {
	var rec models.GameRecord
	if err := s.gameRef(id).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}
	if rec.ID == "" {
		return nil, ErrNotFound
	}
	normalize(&rec)
	return &rec, nil
}

func (s *FirebaseStore) LookupCode(ctx context.Context, code string) (string, error) {
	var id string
	if err := s.codeRef(code).Get(ctx, &id); err != nil {
		return "", fmt.Errorf("查询房间码失败: %w", err)
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *FirebaseStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.GameRecord, error) {
	var result *models.GameRecord
	err := s.gameRef(id).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current models.GameRecord
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		if current.ID == "" {
			return nil, ErrNotFound
		}
		normalize(&current)

		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = &current
				return &current, nil
			}
			return nil, err
		}
		next.Version = current.Version + 1
		result = next
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gameRef(id).Delete(ctx); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	if err := s.codeRef(rec.Code).Delete(ctx); err != nil {
		return fmt.Errorf("删除房间码失败: %w", err)
	}
	return nil
}

func (s *FirebaseStore) Subscribe(ctx context.Context, id string) (<-chan *models.GameRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.GameRecord, SubscriptionBuffer)
	out <- rec

	go func() {
		defer close(out)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		lastVersion := rec.Version
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				latest, err := s.Get(ctx, id)
				if errors.Is(err, ErrNotFound) {
					return
				}
				if err != nil {
					logger.Warn("轮询会话 %s 失败: %v", id, err)
					continue
				}
				if latest.Version > lastVersion {
					lastVersion = latest.Version
					deliver(out, latest)
				}
			}
		}
	}()

	return out, nil
}

func (s *FirebaseStore) Close() error {
	return nil
}

// normalize restores empty maps that the Realtime Database drops on write.
func normalize(rec *models.GameRecord) {
	if rec.Players == nil {
		rec.Players = make(map[string]*models.Player)
	}
}
