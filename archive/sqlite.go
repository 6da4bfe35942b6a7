package archive

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/qianlnk/mafia/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_results (
	session_id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	outcome TEXT NOT NULL,
	days INTEGER NOT NULL,
	players TEXT NOT NULL,
	events TEXT NOT NULL,
	ended_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_results_ended_at ON game_results (ended_at);
`

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database file at path and creates the schema.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveResult(ctx context.Context, result *models.GameResult) error {
	players, events, err := encodeResult(result)
	if err != nil {
		return err
	}

	q := `
	INSERT OR REPLACE INTO game_results (session_id, code, outcome, days, players, events, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q, result.SessionID, result.Code, string(result.Outcome), result.Days, string(players), string(events), result.EndedAt)
	if err != nil {
		return fmt.Errorf("保存结果失败: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) ListResults(ctx context.Context, limit int) ([]*models.GameResult, error) {
	q := `
	SELECT session_id, code, outcome, days, players, events, ended_at
	FROM game_results ORDER BY ended_at DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("查询结果失败: %w", err)
	}
	defer rows.Close()

	results := []*models.GameResult{}
	for rows.Next() {
		var (
			res     models.GameResult
			outcome string
			players string
			events  string
		)
		if err := rows.Scan(&res.SessionID, &res.Code, &outcome, &res.Days, &players, &events, &res.EndedAt); err != nil {
			return nil, fmt.Errorf("读取结果失败: %w", err)
		}
		res.Outcome = models.Outcome(outcome)
		if err := decodeResult(&res, []byte(players), []byte(events)); err != nil {
			return nil, err
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果失败: %w", err)
	}

	return results, nil
}
