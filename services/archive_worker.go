package services

import (
	"context"
	"time"

	"github.com/qianlnk/mafia/archive"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
)

var _ ResultSink = (*ArchiveWorker)(nil)

// ArchiveWorker 异步保存已结束的游戏
type ArchiveWorker struct {
	repository  archive.Repository
	resultsChan chan *models.GameResult
	timeout     time.Duration
}

type NewArchiveWorkerOptions struct {
	Repository archive.Repository
	Buffer     int
	// Timeout 单次保存的超时时间
	Timeout time.Duration
}

// NewArchiveWorker creates a worker that drains finished games into the repository.
func NewArchiveWorker(opts NewArchiveWorkerOptions) *ArchiveWorker {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &ArchiveWorker{
		repository:  opts.Repository,
		resultsChan: make(chan *models.GameResult, opts.Buffer),
		timeout:     opts.Timeout,
	}
}

// Submit 提交结果，队列已满时丢弃
func (w *ArchiveWorker) Submit(result *models.GameResult) {
	select {
	case w.resultsChan <- result:
	default:
		logger.Error("[归档] 队列已满，丢弃会话 %s 的结果", result.SessionID)
	}
}

// Start 处理保存请求直到 ctx 结束，退出前保存队列中剩余的结果
func (w *ArchiveWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case result := <-w.resultsChan:
			w.save(ctx, result)
		}
	}
}

func (w *ArchiveWorker) drain() {
	for {
		select {
		case result := <-w.resultsChan:
			w.save(context.Background(), result)
		default:
			return
		}
	}
}

func (w *ArchiveWorker) save(ctx context.Context, result *models.GameResult) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.repository.SaveResult(ctx, result); err != nil {
		logger.Error("[归档] 保存会话 %s 失败: %v", result.SessionID, err)
		return
	}
	logger.Info("[归档] 会话 %s 已保存: %s 胜利, %d 天", result.SessionID, result.Outcome, result.Days)
}
