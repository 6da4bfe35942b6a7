package services

import (
	"time"

	"github.com/qianlnk/mafia/models"
)

// PhaseTiming 阶段时长
type PhaseTiming struct {
	Night time.Duration
	Day   time.Duration
}

// DefaultPhaseTiming 夜晚45秒，白天60秒
var DefaultPhaseTiming = PhaseTiming{
	Night: 45 * time.Second,
	Day:   60 * time.Second,
}

// EvaluateWin 检查胜负
// 存活黑手党为0时村民胜利，存活黑手党不少于其他存活玩家时黑手党胜利
func EvaluateWin(rec *models.GameRecord) models.Outcome {
	aliveMafia := 0
	aliveOthers := 0
	for _, id := range rec.AliveIDs() {
		if rec.Roles[id] == models.Mafia {
			aliveMafia++
		} else {
			aliveOthers++
		}
	}

	switch {
	case aliveMafia == 0:
		return models.OutcomeVillagersWin
	case aliveMafia >= aliveOthers:
		return models.OutcomeMafiaWin
	default:
		return models.OutcomeNone
	}
}

func setPhase(rec *models.GameRecord, phase models.Phase, d time.Duration, now time.Time) {
	rec.Phase = phase
	rec.PhaseStart = now.UnixMilli()
	rec.PhaseDuration = d.Milliseconds()
}

// enterFirstNight Lobby -> Night
func enterFirstNight(rec *models.GameRecord, roles map[string]models.Role, timing PhaseTiming, now time.Time) {
	rec.Status = models.StatusPlaying
	rec.Roles = roles
	rec.Day = 1
	rec.Events = []string{}
	rec.Outcome = models.OutcomeNone
	rec.DetectiveResults = make(map[string]bool)
	clearActions(rec)
	setPhase(rec, models.PhaseNight, timing.Night, now)
}

// enterDay Night -> Day，天数不变
func enterDay(rec *models.GameRecord, timing PhaseTiming, now time.Time) {
	clearActions(rec)
	rec.DetectiveResults = make(map[string]bool)
	setPhase(rec, models.PhaseDay, timing.Day, now)
}

// enterNight Day -> Night，天数加一
func enterNight(rec *models.GameRecord, timing PhaseTiming, now time.Time) {
	clearActions(rec)
	rec.DetectiveResults = make(map[string]bool)
	rec.Day++
	setPhase(rec, models.PhaseNight, timing.Night, now)
}

// endGame 记录结果，之后不再切换阶段
func endGame(rec *models.GameRecord, outcome models.Outcome) {
	clearActions(rec)
	rec.Status = models.StatusEnded
	rec.Outcome = outcome
	rec.PhaseDuration = 0
}

// roleTitle 公布身份时使用的角色名
func roleTitle(role models.Role) string {
	switch role {
	case models.Mafia:
		return "Mafia"
	case models.Doctor:
		return "Doctor"
	case models.Detective:
		return "Detective"
	case models.Villager:
		return "Villager"
	default:
		return "Unknown"
	}
}
