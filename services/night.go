package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/qianlnk/mafia/models"
)

// 夜晚事件
const (
	EventSaved      = "Someone was saved by the Doctor!"
	EventQuietNight = "A quiet night... no one died."
)

// Resolution 一次阶段结算的结果
type Resolution struct {
	Phase      models.Phase
	Day        int
	Event      string
	Eliminated string // 被杀或被投出的玩家，可能为空
	Saved      bool
	Outcome    models.Outcome
}

// Ended 结算后游戏是否结束
func (r Resolution) Ended() bool {
	return r.Outcome != models.OutcomeNone
}

// plurality 返回得票最多的目标，平票时取ID最小者，无票时返回空
func plurality(counts map[string]int) string {
	targets := make([]string, 0, len(counts))
	for id := range counts {
		targets = append(targets, id)
	}
	sort.Strings(targets)

	winner := ""
	best := 0
	for _, id := range targets {
		if counts[id] > best {
			best = counts[id]
			winner = id
		}
	}
	return winner
}

// ResolveNight 结算夜晚
// 返回新的记录，不修改传入的记录
func ResolveNight(current *models.GameRecord, timing PhaseTiming, now time.Time) (*models.GameRecord, Resolution) {
	rec := current.Clone()
	res := Resolution{Phase: rec.Phase, Day: rec.Day}

	mafiaVotes := make(map[string]int)
	saved := ""
	investigations := make(map[string]bool)

	// 行动者按ID顺序遍历
	for _, actorID := range rec.AliveIDs() {
		target, ok := rec.Actions[actorID]
		if !ok || !IsValidTarget(rec, actorID, target) {
			continue
		}

		switch rec.Roles[actorID] {
		case models.Mafia:
			mafiaVotes[target]++
		case models.Doctor:
			if saved == "" {
				saved = target
			}
		case models.Detective:
			investigations[actorID] = rec.Roles[target] == models.Mafia
		}
	}

	victim := plurality(mafiaVotes)
	switch {
	case victim != "" && victim == saved:
		res.Saved = true
		res.Event = EventSaved
	case victim != "":
		rec.Players[victim].Alive = false
		res.Eliminated = victim
		res.Event = fmt.Sprintf("%s was killed by the Mafia.", rec.PlayerName(victim))
	default:
		res.Event = EventQuietNight
	}
	rec.Events = append(rec.Events, res.Event)

	res.Outcome = EvaluateWin(rec)
	if res.Ended() {
		endGame(rec, res.Outcome)
		rec.DetectiveResults = investigations
		return rec, res
	}

	enterDay(rec, timing, now)
	// 查验结果在白天保留，进入下一个夜晚时清空
	rec.DetectiveResults = investigations
	return rec, res
}
