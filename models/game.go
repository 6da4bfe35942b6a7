package models

import "sort"

// Role 游戏角色
type Role string

const (
	Mafia     Role = "mafia"
	Doctor    Role = "doctor"
	Detective Role = "detective"
	Villager  Role = "villager"
)

// Phase 游戏阶段
type Phase string

const (
	PhaseLobby Phase = "lobby"
	PhaseNight Phase = "night"
	PhaseDay   Phase = "day"
)

// Status 会话状态
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Outcome 游戏结果，空值表示游戏继续
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeMafiaWin     Outcome = "mafia"
	OutcomeVillagersWin Outcome = "villagers"
)

// Player 玩家信息
type Player struct {
	Name      string `json:"name"`
	UID       string `json:"uid"`
	IsBot     bool   `json:"isBot"`
	Connected bool   `json:"connected"`
	Alive     bool   `json:"alive"`
	Ready     bool   `json:"ready"`
}

// GameRecord 会话记录，唯一的权威副本保存在存储中
type GameRecord struct {
	ID               string             `json:"id"`
	Code             string             `json:"code"`
	Host             string             `json:"host"`
	Status           Status             `json:"status"`
	Phase            Phase              `json:"phase"`
	Day              int                `json:"day"`
	PhaseStart       int64              `json:"phaseStart"`    // unix ms
	PhaseDuration    int64              `json:"phaseDuration"` // ms
	Players          map[string]*Player `json:"players"`
	Roles            map[string]Role    `json:"roles,omitempty"`
	Actions          map[string]string  `json:"actions,omitempty"`
	DetectiveResults map[string]bool    `json:"detectiveResults,omitempty"`
	Events           []string           `json:"events"`
	Outcome          Outcome            `json:"outcome,omitempty"`
	Created          int64              `json:"created"`
	Version          int64              `json:"version"`
}

// GameResult 已结束游戏的归档摘要
type GameResult struct {
	SessionID string         `json:"session_id"`
	Code      string         `json:"code"`
	Outcome   Outcome        `json:"outcome"`
	Days      int            `json:"days"`
	Players   []ResultPlayer `json:"players"`
	Events    []string       `json:"events"`
	EndedAt   int64          `json:"ended_at"`
}

// ResultPlayer 归档中的玩家条目
type ResultPlayer struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	IsBot bool   `json:"is_bot"`
	Alive bool   `json:"alive"`
}

// Ended 游戏是否已结束
func (g *GameRecord) Ended() bool {
	return g.Status == StatusEnded
}

// IsAlive 玩家存在且存活
func (g *GameRecord) IsAlive(playerID string) bool {
	p, ok := g.Players[playerID]
	return ok && p.Alive
}

// PlayerIDs 按ID升序返回所有玩家，保证遍历顺序确定
func (g *GameRecord) PlayerIDs() []string {
	ids := make([]string, 0, len(g.Players))
	for id := range g.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AliveIDs 按ID升序返回存活玩家
func (g *GameRecord) AliveIDs() []string {
	ids := make([]string, 0, len(g.Players))
	for _, id := range g.PlayerIDs() {
		if g.Players[id].Alive {
			ids = append(ids, id)
		}
	}
	return ids
}

// PlayerName 获取玩家名称
func (g *GameRecord) PlayerName(playerID string) string {
	if p, ok := g.Players[playerID]; ok && p.Name != "" {
		return p.Name
	}
	return "Unknown"
}

// Clone 深拷贝
func (g *GameRecord) Clone() *GameRecord {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = make(map[string]*Player, len(g.Players))
	for id, p := range g.Players {
		cp := *p
		c.Players[id] = &cp
	}
	if g.Roles != nil {
		c.Roles = make(map[string]Role, len(g.Roles))
		for k, v := range g.Roles {
			c.Roles[k] = v
		}
	}
	if g.Actions != nil {
		c.Actions = make(map[string]string, len(g.Actions))
		for k, v := range g.Actions {
			c.Actions[k] = v
		}
	}
	if g.DetectiveResults != nil {
		c.DetectiveResults = make(map[string]bool, len(g.DetectiveResults))
		for k, v := range g.DetectiveResults {
			c.DetectiveResults[k] = v
		}
	}
	c.Events = append([]string(nil), g.Events...)
	return &c
}

// ViewFor 返回指定玩家可见的记录视图
// 游戏结束前只保留自己的角色、行动和查验结果，黑手党成员可以互相看到
func (g *GameRecord) ViewFor(playerID string) *GameRecord {
	v := g.Clone()
	if g.Ended() {
		return v
	}

	own := g.Roles[playerID]
	v.Roles = make(map[string]Role)
	for id, role := range g.Roles {
		if id == playerID || (own == Mafia && role == Mafia) {
			v.Roles[id] = role
		}
	}

	v.Actions = make(map[string]string)
	if target, ok := g.Actions[playerID]; ok {
		v.Actions[playerID] = target
	}

	v.DetectiveResults = make(map[string]bool)
	if res, ok := g.DetectiveResults[playerID]; ok {
		v.DetectiveResults[playerID] = res
	}
	return v
}

// Result 生成归档摘要
func (g *GameRecord) Result(endedAt int64) *GameResult {
	res := &GameResult{
		SessionID: g.ID,
		Code:      g.Code,
		Outcome:   g.Outcome,
		Days:      g.Day,
		Events:    append([]string(nil), g.Events...),
		EndedAt:   endedAt,
	}
	for _, id := range g.PlayerIDs() {
		p := g.Players[id]
		res.Players = append(res.Players, ResultPlayer{
			UID:   id,
			Name:  p.Name,
			Role:  g.Roles[id],
			IsBot: p.IsBot,
			Alive: p.Alive,
		})
	}
	return res
}
