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

// DefaultMaxPlayers 房间人数上限
const DefaultMaxPlayers = 20

// maxCodeAttempts 房间码冲突时的重试次数
const maxCodeAttempts = 10

// Membership 玩家加入会话后的身份
type Membership struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	PlayerID  string `json:"player_id"`
}

// RoomManager 会话命令入口：创建、加入、添加机器人、开局、行动、结算、离开
type RoomManager struct {
	store      store.SessionStore
	controller *GameController
	rng        Rand
	maxPlayers int
	now        func() time.Time
}

// NewRoomManager 创建房间管理器
func NewRoomManager(opts Options) *RoomManager {
	opts.setDefaults()
	return &RoomManager{
		store:      opts.Store,
		controller: NewGameController(opts),
		rng:        opts.Rand,
		maxPlayers: opts.MaxPlayers,
		now:        opts.Now,
	}
}

// Controller 阶段控制器
func (rm *RoomManager) Controller() *GameController {
	return rm.controller
}

// CreateSession 创建会话，创建者成为房主
func (rm *RoomManager) CreateSession(ctx context.Context, hostName string) (*Membership, error) {
	name, err := normalizeName(hostName)
	if err != nil {
		return nil, err
	}

	hostID := generateID()
	rec := &models.GameRecord{
		ID:      generateID(),
		Host:    hostID,
		Status:  models.StatusLobby,
		Phase:   models.PhaseLobby,
		Players: map[string]*models.Player{hostID: newHumanPlayer(hostID, name)},
		Events:  []string{},
		Created: rm.now().UnixMilli(),
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		rec.Code = generateCode(rm.rng)
		err = rm.store.Create(ctx, rec)
		if errors.Is(err, store.ErrCodeTaken) {
			logger.Debug("[创建会话] 房间码 %s 已被占用，重新生成", rec.Code)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建会话失败: %w", err)
		}

		logger.Info("[创建会话] 会话 %s 房间码 %s 房主 %s", rec.ID, rec.Code, name)
		return &Membership{SessionID: rec.ID, Code: rec.Code, PlayerID: hostID}, nil
	}
	return nil, fmt.Errorf("创建会话失败: %d 次尝试后仍无可用房间码", maxCodeAttempts)
}

// JoinSession 通过房间码加入会话
func (rm *RoomManager) JoinSession(ctx context.Context, code, playerName string) (*Membership, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	name, err := normalizeName(playerName)
	if err != nil {
		return nil, err
	}

	sessionID, err := rm.store.LookupCode(ctx, code)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	playerID := generateID()
	_, err = rm.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		if rec.Status != models.StatusLobby {
			return fmt.Errorf("%w: 游戏已经开始", ErrInvalidState)
		}
		if len(rec.Players) >= rm.maxPlayers {
			return fmt.Errorf("%w: 最多%d人", ErrFull, rm.maxPlayers)
		}
		rec.Players[playerID] = newHumanPlayer(playerID, name)
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	logger.Info("[加入会话] 会话 %s: %s 加入", sessionID, name)
	return &Membership{SessionID: sessionID, Code: code, PlayerID: playerID}, nil
}

// AddBots 房主添加机器人，数量不超过剩余名额，返回实际添加数
func (rm *RoomManager) AddBots(ctx context.Context, sessionID, callerID string, count int) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("%w: 机器人数量必须大于0", ErrValidation)
	}

	added := 0
	_, err := rm.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		added = 0
		if rec.Host != callerID {
			return ErrUnauthorized
		}
		if rec.Status != models.StatusLobby {
			return fmt.Errorf("%w: 游戏已经开始", ErrInvalidState)
		}

		n := min(count, rm.maxPlayers-len(rec.Players))
		if n <= 0 {
			return fmt.Errorf("%w: 最多%d人", ErrFull, rm.maxPlayers)
		}

		bots := 0
		for _, p := range rec.Players {
			if p.IsBot {
				bots++
			}
		}
		for i := 0; i < n; i++ {
			bot := newBotPlayer(bots + i)
			rec.Players[bot.UID] = bot
		}
		added = n
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			logger.Warn("[添加机器人] 会话 %s: 玩家 %s 不是房主，忽略", sessionID, callerID)
			return 0, nil
		}
		return 0, translateStoreErr(err)
	}

	logger.Info("[添加机器人] 会话 %s: 添加 %d 个机器人", sessionID, added)
	return added, nil
}

// StartGame 房主开始游戏
func (rm *RoomManager) StartGame(ctx context.Context, sessionID, callerID string) (*models.GameRecord, error) {
	return rm.controller.StartGame(ctx, sessionID, callerID)
}

// ResolvePhase 房主结算当前阶段
func (rm *RoomManager) ResolvePhase(ctx context.Context, sessionID, callerID string) (*models.GameRecord, error) {
	return rm.controller.ResolvePhase(ctx, sessionID, callerID)
}

// SubmitAction 提交本阶段行动，覆盖之前的行动
func (rm *RoomManager) SubmitAction(ctx context.Context, sessionID, actorID, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("%w: 目标不能为空", ErrValidation)
	}

	_, err := rm.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		if rec.Status != models.StatusPlaying {
			return fmt.Errorf("%w: 游戏未在进行中", ErrInvalidState)
		}
		if _, ok := rec.Players[actorID]; !ok {
			return fmt.Errorf("%w: 玩家 %s 不在会话中", ErrValidation, actorID)
		}
		if rec.Actions[actorID] == targetID {
			return store.ErrNoChange
		}
		ledgerOf(rec).Submit(actorID, targetID)
		return nil
	})
	if err != nil {
		return translateStoreErr(err)
	}

	logger.Debug("[行动] 会话 %s: %s -> %s", sessionID, actorID, targetID)
	return nil
}

// LeaveSession 离开会话
// 大厅阶段从名单中移除，房主离开时由ID最小的真人玩家接任，没有真人玩家时删除会话
// 游戏开始后只标记为断开连接
func (rm *RoomManager) LeaveSession(ctx context.Context, sessionID, playerID string) error {
	deleteSession := false
	rec, err := rm.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		deleteSession = false
		p, ok := rec.Players[playerID]
		if !ok {
			return store.ErrNoChange
		}

		if rec.Status != models.StatusLobby {
			if !p.Connected {
				return store.ErrNoChange
			}
			p.Connected = false
			return nil
		}

		delete(rec.Players, playerID)
		if rec.Host == playerID {
			rec.Host = ""
			for _, id := range rec.PlayerIDs() {
				if !rec.Players[id].IsBot {
					rec.Host = id
					break
				}
			}
			deleteSession = rec.Host == ""
		}
		return nil
	})
	if err != nil {
		return translateStoreErr(err)
	}

	if deleteSession {
		rm.controller.Teardown(sessionID)
		if err := rm.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("删除会话失败: %w", err)
		}
		logger.Info("[离开会话] 会话 %s: 没有真人玩家，已删除", sessionID)
		return nil
	}

	logger.Info("[离开会话] 会话 %s: 玩家 %s 离开，房主 %s", sessionID, playerID, rec.Host)
	return nil
}

// SetConnected 更新玩家在线状态
func (rm *RoomManager) SetConnected(ctx context.Context, sessionID, playerID string, connected bool) error {
	_, err := rm.store.Update(ctx, sessionID, func(rec *models.GameRecord) error {
		p, ok := rec.Players[playerID]
		if !ok || p.Connected == connected {
			return store.ErrNoChange
		}
		p.Connected = connected
		return nil
	})
	return translateStoreErr(err)
}

// View 返回玩家可见的会话视图
func (rm *RoomManager) View(ctx context.Context, sessionID, viewerID string) (*models.GameRecord, error) {
	rec, err := rm.store.Get(ctx, sessionID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return rec.ViewFor(viewerID), nil
}

// Subscribe 订阅会话变化
func (rm *RoomManager) Subscribe(ctx context.Context, sessionID string) (<-chan *models.GameRecord, error) {
	ch, err := rm.store.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return ch, nil
}

// IsMember 玩家是否在会话中
func (rm *RoomManager) IsMember(ctx context.Context, sessionID, playerID string) (bool, error) {
	rec, err := rm.store.Get(ctx, sessionID)
	if err != nil {
		return false, translateStoreErr(err)
	}
	_, ok := rec.Players[playerID]
	return ok, nil
}

// Close 停止计时器
func (rm *RoomManager) Close() {
	rm.controller.Stop()
}

func newHumanPlayer(id, name string) *models.Player {
	return &models.Player{
		Name:      name,
		UID:       id,
		Connected: true,
		Alive:     true,
		Ready:     true,
	}
}
