package services

import (
	"github.com/qianlnk/mafia/models"
)

// ActionLedger 当前阶段的行动记录，每个玩家最多一条，结算前可覆盖
type ActionLedger map[string]string

// ledgerOf 返回记录上的行动表
func ledgerOf(rec *models.GameRecord) ActionLedger {
	if rec.Actions == nil {
		rec.Actions = make(map[string]string)
	}
	return ActionLedger(rec.Actions)
}

// Submit 提交行动，覆盖该玩家本阶段之前的行动
// 提交时不校验目标，结算时非法目标视为未行动
func (l ActionLedger) Submit(actorID, targetID string) {
	l[actorID] = targetID
}

// Has 玩家本阶段是否已行动
func (l ActionLedger) Has(actorID string) bool {
	_, ok := l[actorID]
	return ok
}

// Snapshot 返回行动表副本
func (l ActionLedger) Snapshot() map[string]string {
	snap := make(map[string]string, len(l))
	for k, v := range l {
		snap[k] = v
	}
	return snap
}

// clearActions 阶段切换时清空行动
func clearActions(rec *models.GameRecord) {
	rec.Actions = make(map[string]string)
}

// ValidTargets 返回玩家在当前阶段可以选择的目标，按ID排序
// 夜晚：黑手党选择存活的非黑手党，医生选择任意存活玩家，侦探选择除自己外的存活玩家，村民无行动
// 白天：所有存活玩家投票给除自己外的存活玩家
func ValidTargets(rec *models.GameRecord, actorID string) []string {
	if rec.Ended() || !rec.IsAlive(actorID) {
		return nil
	}

	var keep func(id string) bool
	switch rec.Phase {
	case models.PhaseNight:
		switch rec.Roles[actorID] {
		case models.Mafia:
			keep = func(id string) bool { return rec.Roles[id] != models.Mafia }
		case models.Doctor:
			keep = func(id string) bool { return true }
		case models.Detective:
			keep = func(id string) bool { return id != actorID }
		default:
			return nil
		}
	case models.PhaseDay:
		keep = func(id string) bool { return id != actorID }
	default:
		return nil
	}

	var targets []string
	for _, id := range rec.AliveIDs() {
		if keep(id) {
			targets = append(targets, id)
		}
	}
	return targets
}

// IsValidTarget 目标是否在玩家当前阶段的合法目标中
func IsValidTarget(rec *models.GameRecord, actorID, targetID string) bool {
	for _, id := range ValidTargets(rec, actorID) {
		if id == targetID {
			return true
		}
	}
	return false
}
