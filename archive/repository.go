package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qianlnk/mafia/models"
)

// Repository stores finished games.
type Repository interface {
	SaveResult(ctx context.Context, result *models.GameResult) error
	// ListResults returns the most recently finished games first.
	ListResults(ctx context.Context, limit int) ([]*models.GameResult, error)
	Close(ctx context.Context) error
}

// DefaultListLimit applies when ListResults is called with a non-positive limit.
const DefaultListLimit = 20

// New opens the repository for the configured driver.
// Driver "none" returns a repository that discards results.
func New(ctx context.Context, driver, dsn string) (Repository, error) {
	switch driver {
	case "", "none":
		return NopRepository{}, nil
	case "sqlite":
		repo, err := NewSQLiteRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres":
		repo, err := NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("未知的归档类型: %s", driver)
	}
}

// NopRepository discards everything.
type NopRepository struct{}

func (NopRepository) SaveResult(ctx context.Context, result *models.GameResult) error { return nil }

func (NopRepository) ListResults(ctx context.Context, limit int) ([]*models.GameResult, error) {
	return []*models.GameResult{}, nil
}

func (NopRepository) Close(ctx context.Context) error { return nil }

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func encodeResult(result *models.GameResult) (players []byte, events []byte, err error) {
	players, err = json.Marshal(result.Players)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化玩家失败: %w", err)
	}
	events, err = json.Marshal(result.Events)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	return players, events, nil
}

func decodeResult(result *models.GameResult, players []byte, events []byte) error {
	if err := json.Unmarshal(players, &result.Players); err != nil {
		return fmt.Errorf("解析玩家失败: %w", err)
	}
	if err := json.Unmarshal(events, &result.Events); err != nil {
		return fmt.Errorf("解析事件失败: %w", err)
	}
	return nil
}
