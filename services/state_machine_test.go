package services

import (
	"testing"
	"time"

	"github.com/qianlnk/mafia/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateWin(t *testing.T) {
	tests := []struct {
		name  string
		roles map[string]models.Role
		dead  []string
		want  models.Outcome
	}{
		{
			name:  "one mafia among five continues",
			roles: map[string]models.Role{"m": models.Mafia, "a": models.Villager, "b": models.Villager, "c": models.Doctor, "d": models.Detective},
			want:  models.OutcomeNone,
		},
		{
			name:  "mafia at parity wins",
			roles: map[string]models.Role{"m": models.Mafia, "a": models.Villager, "b": models.Villager, "c": models.Doctor, "d": models.Detective},
			dead:  []string{"b", "c", "d"},
			want:  models.OutcomeMafiaWin,
		},
		{
			name:  "no mafia left",
			roles: map[string]models.Role{"m": models.Mafia, "a": models.Villager, "b": models.Villager},
			dead:  []string{"m"},
			want:  models.OutcomeVillagersWin,
		},
		{
			name:  "mafia majority",
			roles: map[string]models.Role{"m1": models.Mafia, "m2": models.Mafia, "a": models.Villager},
			want:  models.OutcomeMafiaWin,
		},
		{
			name:  "two mafia against three",
			roles: map[string]models.Role{"m1": models.Mafia, "m2": models.Mafia, "a": models.Villager, "b": models.Villager, "c": models.Villager},
			want:  models.OutcomeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := playingRecord(models.PhaseNight, tt.roles)
			for _, id := range tt.dead {
				rec.Players[id].Alive = false
			}
			assert.Equal(t, tt.want, EvaluateWin(rec))
		})
	}
}

func TestPhaseTransitions(t *testing.T) {
	timing := PhaseTiming{Night: 45 * time.Second, Day: 60 * time.Second}
	rec := &models.GameRecord{
		Status:  models.StatusLobby,
		Phase:   models.PhaseLobby,
		Players: map[string]*models.Player{"a": {UID: "a", Alive: true}},
		Events:  []string{"stale"},
	}

	enterFirstNight(rec, map[string]models.Role{"a": models.Mafia}, timing, testNow)
	assert.Equal(t, models.StatusPlaying, rec.Status)
	assert.Equal(t, models.PhaseNight, rec.Phase)
	assert.Equal(t, 1, rec.Day)
	assert.Empty(t, rec.Events)
	assert.Equal(t, int64(45000), rec.PhaseDuration)
	assert.Equal(t, testNow.UnixMilli(), rec.PhaseStart)

	rec.DetectiveResults["a"] = true
	enterDay(rec, timing, testNow)
	assert.Equal(t, models.PhaseDay, rec.Phase)
	assert.Equal(t, 1, rec.Day)
	assert.Equal(t, int64(60000), rec.PhaseDuration)
	assert.Empty(t, rec.DetectiveResults)

	rec.DetectiveResults["a"] = true
	enterNight(rec, timing, testNow)
	assert.Equal(t, models.PhaseNight, rec.Phase)
	assert.Equal(t, 2, rec.Day)
	assert.Empty(t, rec.DetectiveResults)

	endGame(rec, models.OutcomeMafiaWin)
	assert.True(t, rec.Ended())
	assert.Equal(t, models.OutcomeMafiaWin, rec.Outcome)
	assert.Equal(t, 2, rec.Day)
}
