package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
	"github.com/qianlnk/mafia/store"
)

// ResultSink 接收已结束的游戏
type ResultSink interface {
	Submit(result *models.GameResult)
}

// Options 游戏服务参数
type Options struct {
	Store     store.SessionStore
	Rand      Rand
	Scheduler Scheduler
	Results   ResultSink

	Timing     PhaseTiming
	BotGrace   time.Duration
	MaxPlayers int
	// AutoResolve 为 true 时由服务端计时器代替房主在阶段到时后结算
	AutoResolve bool

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) setDefaults() {
	if o.Rand == nil {
		o.Rand = NewRand(0)
	}
	if o.Scheduler == nil {
		o.Scheduler = NewTimerScheduler()
	}
	if o.Timing.Night <= 0 {
		o.Timing.Night = DefaultPhaseTiming.Night
	}
	if o.Timing.Day <= 0 {
		o.Timing.Day = DefaultPhaseTiming.Day
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = DefaultMaxPlayers
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GameController 阶段状态机：开局、结算和阶段计时
type GameController struct {
	store     store.SessionStore
	bots      *BotAgent
	rng       Rand
	scheduler Scheduler
	results   ResultSink

	timing      PhaseTiming
	botGrace    time.Duration
	autoResolve bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGameController 创建游戏控制器
func NewGameController(opts Options) *GameController {
	opts.setDefaults()
	return &GameController{
		store:       opts.Store,
		bots:        NewBotAgent(opts.Rand),
		rng:         opts.Rand,
		scheduler:   opts.Scheduler,
		results:     opts.Results,
		timing:      opts.Timing,
		botGrace:    opts.BotGrace,
		autoResolve: opts.AutoResolve,
		now:         opts.Now,
		sleep:       opts.Sleep,
	}
}

// StartGame 房主开始游戏：分配角色，进入第一个夜晚
func (gc *GameController) StartGame(ctx context.Context, sessionID, callerID string) (*models.GameRecord, error) {
	rec, err := gc.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		if rec.Host != callerID {
			return ErrUnauthorized
		}
		if rec.Status != models.StatusLobby {
			return fmt.Errorf("%w: 游戏已经开始", ErrInvalidState)
		}

		roles, err := AssignRoles(rec.PlayerIDs(), gc.rng)
		if err != nil {
			return err
		}
		enterFirstNight(rec, roles, gc.timing, gc.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			logger.Warn("[开始游戏] 会话 %s: 玩家 %s 不是房主，忽略", sessionID, callerID)
			return nil, nil
		}
		return nil, translateStoreErr(err)
	}

	logger.Info("[开始游戏] 会话 %s: %d 名玩家，进入第 %d 天夜晚", sessionID, len(rec.Players), rec.Day)
	gc.schedulePhase(rec)
	return rec, nil
}

// ResolvePhase 房主结算当前阶段，非房主调用时忽略
func (gc *GameController) ResolvePhase(ctx context.Context, sessionID, callerID string) (*models.GameRecord, error) {
	rec, err := gc.store.Get(ctx, sessionID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if rec.Host != callerID {
		logger.Warn("[结算] 会话 %s: 玩家 %s 不是房主，忽略", sessionID, callerID)
		return nil, nil
	}
	return gc.resolve(ctx, rec)
}

// resolve 机器人行动 -> 等待人类玩家行动落定 -> 重新读取 -> 比较阶段后写入结算结果
func (gc *GameController) resolve(ctx context.Context, rec *models.GameRecord) (*models.GameRecord, error) {
	if rec.Status != models.StatusPlaying {
		return nil, fmt.Errorf("%w: 游戏未在进行中", ErrInvalidState)
	}

	sessionID := rec.ID
	phase, day := rec.Phase, rec.Day
	samePhase := func(r *models.GameRecord) error {
		if r.Status != models.StatusPlaying || r.Phase != phase || r.Day != day {
			return ErrStaleResolution
		}
		return nil
	}

	_, err := gc.store.Update(ctx, sessionID, func(r *models.GameRecord) error {
		if err := samePhase(r); err != nil {
			return err
		}
		if gc.bots.Act(r) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, gc.resolveErr(sessionID, err)
	}

	if err := gc.sleep(ctx, gc.botGrace); err != nil {
		return nil, err
	}

	var res Resolution
	next, err := gc.store.Update(ctx, sessionID, func(r *models.GameRecord) error {
		if err := samePhase(r); err != nil {
			return err
		}

		var resolved *models.GameRecord
		switch r.Phase {
		case models.PhaseNight:
			resolved, res = ResolveNight(r, gc.timing, gc.now())
		case models.PhaseDay:
			resolved, res = ResolveDay(r, gc.timing, gc.now())
		default:
			return fmt.Errorf("%w: 阶段 %s 无法结算", ErrInvalidState, r.Phase)
		}
		*r = *resolved
		return nil
	})
	if err != nil {
		return nil, gc.resolveErr(sessionID, err)
	}

	logger.Info("[结算] 会话 %s: 第 %d 天 %s -> %s", sessionID, res.Day, res.Phase, res.Event)

	if res.Ended() {
		gc.scheduler.Cancel(sessionID)
		logger.Info("[游戏结束] 会话 %s: %s 胜利", sessionID, res.Outcome)
		if gc.results != nil {
			gc.results.Submit(next.Result(gc.now().UnixMilli()))
		}
		return next, nil
	}

	gc.schedulePhase(next)
	return next, nil
}

func (gc *GameController) resolveErr(sessionID string, err error) error {
	if errors.Is(err, ErrStaleResolution) {
		logger.Debug("[结算] 会话 %s: 阶段已被结算，跳过", sessionID)
	}
	return translateStoreErr(err)
}

// schedulePhase 为当前阶段设置计时器，到时后以房主身份结算
func (gc *GameController) schedulePhase(rec *models.GameRecord) {
	if !gc.autoResolve || rec.Status != models.StatusPlaying {
		return
	}

	sessionID := rec.ID
	phase, day := rec.Phase, rec.Day
	d := time.Duration(rec.PhaseDuration) * time.Millisecond
	gc.scheduler.Schedule(sessionID, d, func() {
		ctx := context.Background()
		current, err := gc.store.Get(ctx, sessionID)
		if err != nil {
			logger.Warn("[计时器] 会话 %s: 读取失败: %v", sessionID, err)
			return
		}
		if current.Status != models.StatusPlaying || current.Phase != phase || current.Day != day {
			return
		}
		if _, err := gc.resolve(ctx, current); err != nil && !errors.Is(err, ErrStaleResolution) {
			logger.Error("[计时器] 会话 %s: 结算失败: %v", sessionID, err)
		}
	})
}

// Teardown 取消会话的计时器
func (gc *GameController) Teardown(sessionID string) {
	gc.scheduler.Cancel(sessionID)
}

// Stop 取消所有计时器
func (gc *GameController) Stop() {
	gc.scheduler.Stop()
}

// translateStoreErr 将存储层错误转换为服务层错误
func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
