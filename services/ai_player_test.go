package services

import (
	"strings"
	"testing"

	"github.com/qianlnk/mafia/models"
	"github.com/stretchr/testify/assert"
)

func makeBots(rec *models.GameRecord, ids ...string) {
	for _, id := range ids {
		rec.Players[id].IsBot = true
	}
}

func TestBotAgent_NightActions(t *testing.T) {
	rec := playingRecord(models.PhaseNight, map[string]models.Role{
		"bm": models.Mafia, "bd": models.Doctor, "bt": models.Detective,
		"bv": models.Villager, "h": models.Villager,
	})
	makeBots(rec, "bm", "bd", "bt", "bv")

	n := NewBotAgent(NewRand(1)).Act(rec)

	assert.Equal(t, 3, n)
	assert.Contains(t, []string{"bd", "bt", "bv", "h"}, rec.Actions["bm"])
	assert.Contains(t, rec.AliveIDs(), rec.Actions["bd"])
	assert.NotEqual(t, "bt", rec.Actions["bt"])
	assert.NotContains(t, rec.Actions, "bv", "villagers have no night action")
	assert.NotContains(t, rec.Actions, "h", "humans act for themselves")
}

func TestBotAgent_SkipsActedAndDead(t *testing.T) {
	rec := playingRecord(models.PhaseDay, map[string]models.Role{
		"b1": models.Mafia, "b2": models.Villager, "b3": models.Villager, "h": models.Villager,
	})
	makeBots(rec, "b1", "b2", "b3")
	rec.Players["b3"].Alive = false
	rec.Actions["b1"] = "h"

	n := NewBotAgent(NewRand(2)).Act(rec)

	assert.Equal(t, 1, n)
	assert.Equal(t, "h", rec.Actions["b1"])
	assert.NotContains(t, rec.Actions, "b3")
	assert.Contains(t, []string{"b1", "h"}, rec.Actions["b2"])
}

func TestBotAgent_AbstainsWithoutTargets(t *testing.T) {
	rec := playingRecord(models.PhaseDay, map[string]models.Role{"b": models.Mafia})
	makeBots(rec, "b")

	assert.Equal(t, 0, NewBotAgent(NewRand(3)).Act(rec))
	assert.Empty(t, rec.Actions)
}

func TestBotAgent_IdleOutsidePlay(t *testing.T) {
	rec := playingRecord(models.PhaseDay, map[string]models.Role{"b": models.Mafia, "c": models.Villager})
	makeBots(rec, "b", "c")
	rec.Status = models.StatusEnded

	assert.Equal(t, 0, NewBotAgent(NewRand(4)).Act(rec))
}

func TestBotNames(t *testing.T) {
	assert.Equal(t, "Bot Alpha", botName(0))
	assert.Equal(t, "Bot Omega", botName(14))
	assert.Equal(t, "Bot Alpha", botName(15))

	bot := newBotPlayer(1)
	assert.Equal(t, "Bot Beta", bot.Name)
	assert.True(t, strings.HasPrefix(bot.UID, "bot_"))
	assert.True(t, bot.IsBot && bot.Alive && bot.Connected && bot.Ready)
}
