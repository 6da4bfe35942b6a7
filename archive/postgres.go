package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS game_results (
	session_id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	outcome TEXT NOT NULL,
	days INTEGER NOT NULL,
	players JSONB NOT NULL,
	events JSONB NOT NULL,
	ended_at BIGINT NOT NULL
);
`

// PostgresRepository 归档写入和查询可能并发，使用连接池
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository 连接数据库并创建表，调用方负责 Close
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	logger.Info("已连接数据库 %s，用户 %s", database, username)

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveResult(ctx context.Context, result *models.GameResult) error {
	players, events, err := encodeResult(result)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `
	INSERT INTO game_results (session_id, code, outcome, days, players, events, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (session_id) DO UPDATE SET outcome = $3, days = $4, players = $5, events = $6, ended_at = $7;
	`
	_, err = tx.Exec(ctx, q, result.SessionID, result.Code, string(result.Outcome), result.Days, string(players), string(events), result.EndedAt)
	if err != nil {
		return fmt.Errorf("保存结果失败: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListResults(ctx context.Context, limit int) ([]*models.GameResult, error) {
	rows, err := r.pool.Query(ctx, `
	SELECT session_id, code, outcome, days, players::text, events::text, ended_at
	FROM game_results ORDER BY ended_at DESC LIMIT $1
	`, normalizeLimit(limit))
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
