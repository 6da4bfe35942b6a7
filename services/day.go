package services

import (
	"fmt"
	"time"

	"github.com/qianlnk/mafia/models"
)

// EventNoElimination 无人投票时的事件
const EventNoElimination = "The town could not decide... no one was eliminated."

// ResolveDay 结算白天投票
// 每个存活玩家一票，不能投自己，得票最多者出局并公布身份
func ResolveDay(current *models.GameRecord, timing PhaseTiming, now time.Time) (*models.GameRecord, Resolution) {
	rec := current.Clone()
	res := Resolution{Phase: rec.Phase, Day: rec.Day}

	votes := make(map[string]int)
	for _, voterID := range rec.AliveIDs() {
		target, ok := rec.Actions[voterID]
		if !ok || !IsValidTarget(rec, voterID, target) {
			continue
		}
		votes[target]++
	}

	if target := plurality(votes); target != "" {
		rec.Players[target].Alive = false
		res.Eliminated = target
		res.Event = fmt.Sprintf("%s was voted out. They were a %s.", rec.PlayerName(target), roleTitle(rec.Roles[target]))
	} else {
		res.Event = EventNoElimination
	}
	rec.Events = append(rec.Events, res.Event)

	res.Outcome = EvaluateWin(rec)
	if res.Ended() {
		endGame(rec, res.Outcome)
		return rec, res
	}

	enterNight(rec, timing, now)
	return rec, res
}
