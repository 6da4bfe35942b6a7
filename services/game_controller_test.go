package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/qianlnk/mafia/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSixPlayerGame creates a lobby with six humans and starts it.
func startSixPlayerGame(t *testing.T, env *testEnv) (sessionID, hostID string) {
	t.Helper()
	ctx := context.Background()

	host, err := env.rooms.CreateSession(ctx, "Host")
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := env.rooms.JoinSession(ctx, host.Code, fmt.Sprintf("Player %d", i))
		require.NoError(t, err)
	}

	rec, err := env.rooms.StartGame(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return host.SessionID, host.PlayerID
}

func TestStartGame(t *testing.T) {
	env := newTestEnv(t, 11)
	sessionID, _ := startSixPlayerGame(t, env)

	rec := env.get(t, sessionID)
	assert.Equal(t, models.StatusPlaying, rec.Status)
	assert.Equal(t, models.PhaseNight, rec.Phase)
	assert.Equal(t, 1, rec.Day)
	assert.Equal(t, int64(45000), rec.PhaseDuration)
	assert.Equal(t, testNow.UnixMilli(), rec.PhaseStart)
	assert.Len(t, rec.Roles, 6)
	assert.Len(t, idsWithRole(rec, models.Mafia), 1)
	assert.Len(t, idsWithRole(rec, models.Doctor), 1)
	assert.Len(t, idsWithRole(rec, models.Detective), 1)
	assert.Len(t, idsWithRole(rec, models.Villager), 3)

	d, ok := env.scheduler.pending(sessionID)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, d)
}

func TestStartGame_Guards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 12)

	host, err := env.rooms.CreateSession(ctx, "Host")
	require.NoError(t, err)
	guest, err := env.rooms.JoinSession(ctx, host.Code, "Guest")
	require.NoError(t, err)

	// a non-host start is ignored
	rec, err := env.rooms.StartGame(ctx, host.SessionID, guest.PlayerID)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, models.StatusLobby, env.get(t, host.SessionID).Status)

	_, err = env.rooms.StartGame(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)

	_, err = env.rooms.StartGame(ctx, host.SessionID, host.PlayerID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.rooms.StartGame(ctx, "missing", host.PlayerID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirstNightScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 21)
	sessionID, hostID := startSixPlayerGame(t, env)

	rec := env.get(t, sessionID)
	mafia := idsWithRole(rec, models.Mafia)[0]
	doctor := idsWithRole(rec, models.Doctor)[0]
	detective := idsWithRole(rec, models.Detective)[0]
	villagers := idsWithRole(rec, models.Villager)
	require.Len(t, villagers, 3)

	require.NoError(t, env.rooms.SubmitAction(ctx, sessionID, mafia, villagers[0]))
	require.NoError(t, env.rooms.SubmitAction(ctx, sessionID, doctor, villagers[1]))
	require.NoError(t, env.rooms.SubmitAction(ctx, sessionID, detective, mafia))

	night := env.get(t, sessionID)
	next, err := env.rooms.ResolvePhase(ctx, sessionID, hostID)
	require.NoError(t, err)
	require.NotNil(t, next)

	assert.Equal(t, models.PhaseDay, next.Phase)
	assert.Equal(t, 1, next.Day)
	assert.False(t, next.Players[villagers[0]].Alive)
	assert.True(t, next.Players[villagers[1]].Alive)
	require.Len(t, next.Events, 1)
	assert.Equal(t, next.PlayerName(villagers[0])+" was killed by the Mafia.", next.Events[0])
	assert.True(t, next.DetectiveResults[detective])
	assert.Empty(t, next.Actions)

	// the detective sees the result, others do not
	assert.Equal(t, map[string]bool{detective: true}, next.ViewFor(detective).DetectiveResults)
	assert.Empty(t, next.ViewFor(doctor).DetectiveResults)

	d, ok := env.scheduler.pending(sessionID)
	assert.True(t, ok)
	assert.Equal(t, 60*time.Second, d)

	// resolving the night a second time is rejected
	_, err = env.rooms.Controller().resolve(ctx, night)
	assert.ErrorIs(t, err, ErrStaleResolution)
	assert.Equal(t, next.Version, env.get(t, sessionID).Version)
}

func TestResolvePhase_NonHostIgnored(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 31)
	sessionID, hostID := startSixPlayerGame(t, env)

	before := env.get(t, sessionID)
	var guest string
	for id := range before.Players {
		if id != hostID {
			guest = id
			break
		}
	}

	rec, err := env.rooms.ResolvePhase(ctx, sessionID, guest)
	require.NoError(t, err)
	assert.Nil(t, rec)

	after := env.get(t, sessionID)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, models.PhaseNight, after.Phase)
}

func TestResolvePhase_NotPlaying(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 32)

	host, err := env.rooms.CreateSession(ctx, "Host")
	require.NoError(t, err)

	_, err = env.rooms.ResolvePhase(ctx, host.SessionID, host.PlayerID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTimerResolvesPhases(t *testing.T) {
	env := newTestEnv(t, 41)
	sessionID, _ := startSixPlayerGame(t, env)

	// nobody acts: quiet night, then a day without votes
	require.True(t, env.scheduler.fire(sessionID))
	rec := env.get(t, sessionID)
	assert.Equal(t, models.PhaseDay, rec.Phase)
	assert.Equal(t, []string{EventQuietNight}, rec.Events)

	require.True(t, env.scheduler.fire(sessionID))
	rec = env.get(t, sessionID)
	assert.Equal(t, models.PhaseNight, rec.Phase)
	assert.Equal(t, 2, rec.Day)
	assert.Equal(t, []string{EventQuietNight, EventNoElimination}, rec.Events)

	d, ok := env.scheduler.pending(sessionID)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, d)
}

func TestBotGamePlaysToTheEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 51)

	host, err := env.rooms.CreateSession(ctx, "Host")
	require.NoError(t, err)
	added, err := env.rooms.AddBots(ctx, host.SessionID, host.PlayerID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, added)

	_, err = env.rooms.StartGame(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)

	phases := 0
	for env.scheduler.fire(host.SessionID) {
		phases++
		require.Less(t, phases, 40, "game did not end")
	}

	rec := env.get(t, host.SessionID)
	require.True(t, rec.Ended())
	assert.Contains(t, []models.Outcome{models.OutcomeMafiaWin, models.OutcomeVillagersWin}, rec.Outcome)
	assert.Equal(t, rec.Outcome, EvaluateWin(rec))
	assert.Len(t, rec.Events, phases)
	assert.Equal(t, 1, env.scheduler.cancelled[host.SessionID])

	results := env.sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, host.SessionID, results[0].SessionID)
	assert.Equal(t, rec.Outcome, results[0].Outcome)
	assert.Len(t, results[0].Players, 8)

	// nothing happens after the end
	_, err = env.rooms.ResolvePhase(ctx, host.SessionID, host.PlayerID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBotsActBeforeResolution(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 61)

	host, err := env.rooms.CreateSession(ctx, "Host")
	require.NoError(t, err)
	_, err = env.rooms.AddBots(ctx, host.SessionID, host.PlayerID, 5)
	require.NoError(t, err)
	_, err = env.rooms.StartGame(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)

	// skip the night, then check that every bot voted during the day
	_, err = env.rooms.ResolvePhase(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)
	day := env.get(t, host.SessionID)
	if day.Ended() {
		t.Skip("game ended on the first night")
	}

	var sleptFor time.Duration
	env.rooms.controller.sleep = func(ctx context.Context, d time.Duration) error {
		sleptFor = d
		voted := env.get(t, host.SessionID)
		for _, id := range voted.AliveIDs() {
			if voted.Players[id].IsBot {
				assert.Contains(t, voted.Actions, id, "bot %s did not vote", id)
			}
		}
		return nil
	}
	env.rooms.controller.botGrace = 750 * time.Millisecond

	_, err = env.rooms.ResolvePhase(ctx, host.SessionID, host.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, sleptFor)
}
