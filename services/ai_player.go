package services

import (
	"github.com/qianlnk/mafia/models"
)

// BotNames 机器人名称，按顺序循环使用
var BotNames = []string{
	"Bot Alpha", "Bot Beta", "Bot Gamma", "Bot Delta", "Bot Echo",
	"Bot Fox", "Bot Ghost", "Bot Hunter", "Bot Iron", "Bot Judge",
	"Bot King", "Bot Luna", "Bot Mars", "Bot Nova", "Bot Omega",
}

// botName 第 index 个机器人的名称
func botName(index int) string {
	return BotNames[index%len(BotNames)]
}

// newBotPlayer 创建机器人玩家
func newBotPlayer(index int) *models.Player {
	id := generateBotID()
	return &models.Player{
		Name:      botName(index),
		UID:       id,
		IsBot:     true,
		Connected: true,
		Alive:     true,
		Ready:     true,
	}
}

// BotAgent 代替机器人玩家行动
type BotAgent struct {
	rng Rand
}

// NewBotAgent 创建机器人代理
func NewBotAgent(rng Rand) *BotAgent {
	return &BotAgent{rng: rng}
}

// Act 为本阶段尚未行动的存活机器人随机选择合法目标并提交，没有合法目标时弃权
// 返回提交的行动数
func (b *BotAgent) Act(rec *models.GameRecord) int {
	if rec.Status != models.StatusPlaying {
		return 0
	}

	ledger := ledgerOf(rec)
	submitted := 0
	for _, id := range rec.PlayerIDs() {
		p := rec.Players[id]
		if !p.IsBot || !p.Alive || ledger.Has(id) {
			continue
		}

		targets := ValidTargets(rec, id)
		if len(targets) == 0 {
			continue
		}
		ledger.Submit(id, targets[b.rng.Intn(len(targets))])
		submitted++
	}
	return submitted
}
