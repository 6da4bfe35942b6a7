package services

import (
	"testing"

	"github.com/qianlnk/mafia/models"
	"github.com/stretchr/testify/assert"
)

func TestActionLedger_LatestSubmissionWins(t *testing.T) {
	rec := playingRecord(models.PhaseNight, map[string]models.Role{
		"m": models.Mafia, "x": models.Villager, "y": models.Villager,
	})
	ledger := ledgerOf(rec)

	ledger.Submit("m", "x")
	ledger.Submit("m", "y")

	assert.True(t, ledger.Has("m"))
	assert.False(t, ledger.Has("x"))
	assert.Equal(t, map[string]string{"m": "y"}, ledger.Snapshot())
	assert.Equal(t, "y", rec.Actions["m"])
}

func TestActionLedger_SnapshotIsCopy(t *testing.T) {
	ledger := ActionLedger{"a": "b"}
	snap := ledger.Snapshot()
	snap["a"] = "c"
	assert.Equal(t, "b", ledger["a"])
}

func TestActionLedger_ClearedOnTransition(t *testing.T) {
	rec := playingRecord(models.PhaseNight, map[string]models.Role{
		"m": models.Mafia, "x": models.Villager, "y": models.Villager, "z": models.Villager,
	})
	ledgerOf(rec).Submit("x", "y")
	enterDay(rec, DefaultPhaseTiming, testNow)
	assert.Empty(t, rec.Actions)

	ledgerOf(rec).Submit("x", "y")
	enterNight(rec, DefaultPhaseTiming, testNow)
	assert.Empty(t, rec.Actions)
}

func TestValidTargets(t *testing.T) {
	roles := map[string]models.Role{
		"m1": models.Mafia, "m2": models.Mafia, "doc": models.Doctor,
		"det": models.Detective, "v": models.Villager, "w": models.Villager,
	}

	night := playingRecord(models.PhaseNight, roles)
	night.Players["w"].Alive = false

	day := playingRecord(models.PhaseDay, roles)
	day.Players["w"].Alive = false

	tests := []struct {
		name  string
		rec   *models.GameRecord
		actor string
		want  []string
	}{
		{name: "mafia targets living non-mafia", rec: night, actor: "m1", want: []string{"det", "doc", "v"}},
		{name: "doctor may save anyone alive", rec: night, actor: "doc", want: []string{"det", "doc", "m1", "m2", "v"}},
		{name: "detective skips self", rec: night, actor: "det", want: []string{"doc", "m1", "m2", "v"}},
		{name: "villager has no night action", rec: night, actor: "v", want: nil},
		{name: "dead have no action", rec: night, actor: "w", want: nil},
		{name: "day vote skips self", rec: day, actor: "v", want: []string{"det", "doc", "m1", "m2"}},
		{name: "unknown actor", rec: day, actor: "nobody", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTargets(tt.rec, tt.actor))
		})
	}

	assert.True(t, IsValidTarget(night, "m1", "v"))
	assert.False(t, IsValidTarget(night, "m1", "m2"))
	assert.False(t, IsValidTarget(night, "m1", "w"))
}
