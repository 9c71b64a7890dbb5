package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	board := NewLeaderboardService(env.store, time.UTC)
	board.now = env.clock.Now

	a := env.register(t, "max")
	b := env.register(t, "ned")
	c := env.register(t, "ora")

	done := func(userID int64, xp int64) {
		task := env.createTask(t, userID, model.DifficultyHard, xp, time.Hour, nil)
		_, err := env.tasks.Complete(env.ctx, userID, task.ID, "")
		require.NoError(t, err)
	}
	done(a.ID, 300)
	done(b.ID, 500)
	done(b.ID, 250)

	// Punishments do not count against the daily total.
	failing := env.createTask(t, c.ID, model.DifficultyEasy, 60, time.Hour,
		&model.Penalty{Type: model.PenaltyXP, Amount: 30})
	failure, err := env.tasks.Fail(env.ctx, c.ID, failing.ID)
	require.NoError(t, err)
	_, err = env.resolver.Apply(env.ctx, c.ID, failing.ID, failure.Options[0].ID)
	require.NoError(t, err)

	top, err := board.TopUsers(env.ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, b.ID, top[0].ID)
	assert.Equal(t, a.ID, top[1].ID)

	leaders, err := board.DailyLeaders(env.ctx, 10)
	require.NoError(t, err)
	require.Len(t, leaders, 2)
	assert.Equal(t, "ned", leaders[0].Username)
	assert.Equal(t, int64(750), leaders[0].XPGained)
	assert.Equal(t, int64(300), leaders[1].XPGained)

	yesterday, err := board.DailyLeadersForDate(env.ctx, env.clock.Now().AddDate(0, 0, -1), 10)
	require.NoError(t, err)
	assert.Empty(t, yesterday)
}
