package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// storeContract exercises the behaviour every Store implementation shares.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	newUser := func(t *testing.T, s Store, name string) *model.User {
		u, err := s.CreateUser(ctx, model.NewUser{Username: name, Email: name + "@example.com", DisplayName: name})
		require.NoError(t, err)
		return u
	}
	newTask := func(t *testing.T, s Store, userID int64, expiresIn time.Duration) *model.Task {
		task, err := s.CreateTask(ctx, model.NewTask{
			UserID: userID,
			TaskDraft: model.TaskDraft{
				Title:          "Shadow Boxing Workout",
				Description:    "20 minutes of shadow boxing",
				Category:       "Fitness",
				Difficulty:     model.DifficultyMedium,
				ProofType:      model.ProofPhoto,
				XPReward:       200,
				CreatedBy:      model.CreatedByAI,
				FailurePenalty: &model.Penalty{Type: model.PenaltyCredits, Amount: 22},
				ExpiresAt:      time.Now().Add(expiresIn),
			},
		})
		require.NoError(t, err)
		return task
	}

	t.Run("CreateUserDefaults", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "alice")
		assert.Equal(t, 1, u.Level)
		assert.Equal(t, int64(0), u.XP)
		assert.Equal(t, int64(100), u.XPass)
		assert.Equal(t, "Novice Challenger", u.Title)
		assert.False(t, u.IsLocked)

		_, err := s.CreateUser(ctx, model.NewUser{Username: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, ErrUserExists)

		byEmail, err := s.GetUserByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		_, err = s.GetUser(ctx, 99999)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateUserMergesSuppliedFields", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "bob")
		locked := true
		updated, err := s.UpdateUser(ctx, u.ID, model.UserUpdate{IsLocked: &locked})
		require.NoError(t, err)
		assert.True(t, updated.IsLocked)
		assert.Equal(t, "bob", updated.DisplayName)
		assert.Equal(t, "Novice Challenger", updated.Title)

		_, err = s.UpdateUser(ctx, 99999, model.UserUpdate{IsLocked: &locked})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("AdjustResourcesFloorsAtZero", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "carol")
		u, err := s.AdjustResources(ctx, u.ID, 120, -30)
		require.NoError(t, err)
		assert.Equal(t, int64(120), u.XP)
		assert.Equal(t, int64(70), u.XPass)

		u, err = s.AdjustResources(ctx, u.ID, -500, -500)
		require.NoError(t, err)
		assert.Equal(t, int64(0), u.XP)
		assert.Equal(t, int64(0), u.XPass)
	})

	t.Run("CreateTaskDefaults", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "dave")
		first := newTask(t, s, u.ID, time.Hour)
		second := newTask(t, s, u.ID, time.Hour)

		assert.Greater(t, second.ID, first.ID)
		assert.Equal(t, model.StatusActive, first.Status)
		assert.Nil(t, first.Proof)
		assert.Nil(t, first.CompletedAt)
		assert.True(t, first.ExpiresAt.After(first.CreatedAt))
		require.NotNil(t, first.FailurePenalty)
		assert.Equal(t, int64(22), first.FailurePenalty.Amount)

		_, err := s.CreateTask(ctx, model.NewTask{UserID: u.ID, TaskDraft: model.TaskDraft{
			Title: "late", Difficulty: model.DifficultyEasy, ProofType: model.ProofText,
			CreatedBy: model.CreatedByUser, ExpiresAt: time.Now().Add(-time.Minute),
		}})
		assert.ErrorIs(t, err, ErrInvalidExpiry)
	})

	t.Run("UpdateTaskKeepsRewardAndPenalty", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "erin")
		task := newTask(t, s, u.ID, time.Hour)

		title := "Renamed"
		updated, err := s.UpdateTask(ctx, task.ID, model.TaskUpdate{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, task.Description, updated.Description)
		assert.Equal(t, task.XPReward, updated.XPReward)
		assert.Equal(t, task.FailurePenalty, updated.FailurePenalty)

		_, err = s.UpdateTask(ctx, 99999, model.TaskUpdate{Title: &title})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("TransitionIsOneWay", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "frank")
		task := newTask(t, s, u.ID, time.Hour)

		proof := "photo.jpg"
		at := time.Now()
		done, err := s.TransitionTask(ctx, task.ID, model.StatusActive, model.StatusCompleted, at, &proof)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, done.Status)
		require.NotNil(t, done.Proof)
		assert.Equal(t, "photo.jpg", *done.Proof)
		assert.NotNil(t, done.CompletedAt)

		_, err = s.TransitionTask(ctx, task.ID, model.StatusActive, model.StatusFailed, at, nil)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		_, err = s.TransitionTask(ctx, task.ID, model.StatusCompleted, model.StatusActive, at, nil)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		_, err = s.TransitionTask(ctx, 99999, model.StatusActive, model.StatusFailed, at, nil)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("StatusQueries", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "gina")
		other := newUser(t, s, "hank")
		active := newTask(t, s, u.ID, time.Hour)
		completed := newTask(t, s, u.ID, time.Hour)
		failed := newTask(t, s, u.ID, time.Hour)
		newTask(t, s, other.ID, time.Hour)

		_, err := s.TransitionTask(ctx, completed.ID, model.StatusActive, model.StatusCompleted, time.Now(), nil)
		require.NoError(t, err)
		_, err = s.TransitionTask(ctx, failed.ID, model.StatusActive, model.StatusFailed, time.Now(), nil)
		require.NoError(t, err)

		all, err := s.TasksForUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		list, err := s.ActiveTasksForUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, active.ID, list[0].ID)

		list, err = s.CompletedTasksForUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, completed.ID, list[0].ID)

		list, err = s.FailedTasksForUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, failed.ID, list[0].ID)
	})

	t.Run("ExpiredActiveTasksIsEvaluatedFromTimestamps", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "ivy")
		soon := newTask(t, s, u.ID, 10*time.Minute)
		later := newTask(t, s, u.ID, 3*time.Hour)

		expired, err := s.ExpiredActiveTasks(ctx, time.Now())
		require.NoError(t, err)
		assert.Empty(t, expired)

		expired, err = s.ExpiredActiveTasks(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, soon.ID, expired[0].ID)

		expired, err = s.ExpiredActiveTasks(ctx, time.Now().Add(4*time.Hour))
		require.NoError(t, err)
		assert.Len(t, expired, 2)

		_, err = s.TransitionTask(ctx, later.ID, model.StatusActive, model.StatusCompleted, time.Now(), nil)
		require.NoError(t, err)
		expired, err = s.ExpiredActiveTasks(ctx, time.Now().Add(4*time.Hour))
		require.NoError(t, err)
		assert.Len(t, expired, 1)
	})

	t.Run("ConcurrentTransitionSucceedsOnce", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "jack")
		task := newTask(t, s, u.ID, time.Hour)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.TransitionTask(ctx, task.ID, model.StatusActive, model.StatusFailed, time.Now(), nil); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("PunishmentSelectionOncePerTask", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "kate")
		task := newTask(t, s, u.ID, time.Hour)
		_, err := s.TransitionTask(ctx, task.ID, model.StatusActive, model.StatusFailed, time.Now(), nil)
		require.NoError(t, err)

		n, err := s.UnresolvedFailedTaskCount(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		opts, err := s.CreatePunishments(ctx, task.ID, []model.PunishmentOption{
			{Description: "Lose 22 XPass", PenaltyType: model.PenaltyCredits, PenaltyAmount: 22},
			{Description: "Lose 60 XP", PenaltyType: model.PenaltyXP, PenaltyAmount: 60},
		})
		require.NoError(t, err)
		require.Len(t, opts, 2)
		assert.False(t, opts[0].IsSelected)
		assert.Equal(t, task.ID, opts[1].TaskID)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, o := range opts {
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(id int64) {
					defer wg.Done()
					if _, err := s.SelectPunishment(ctx, id); err == nil {
						wins.Add(1)
					} else {
						assert.ErrorIs(t, err, ErrPunishmentResolved)
					}
				}(o.ID)
			}
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		n, err = s.UnresolvedFailedTaskCount(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		listed, err := s.PunishmentsForTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Len(t, listed, 2)

		_, err = s.GetPunishment(ctx, 99999)
		assert.ErrorIs(t, err, ErrPunishmentNotFound)
		_, err = s.SelectPunishment(ctx, 99999)
		assert.ErrorIs(t, err, ErrPunishmentNotFound)
	})

	t.Run("FailTaskIsAtomic", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "kira")
		task := newTask(t, s, u.ID, time.Hour)

		failed, opts, err := s.FailTask(ctx, task.ID, func(t *model.Task) []model.PunishmentOption {
			return []model.PunishmentOption{
				{Description: "Lose 22 XPass", PenaltyType: t.FailurePenalty.Type, PenaltyAmount: t.FailurePenalty.Amount},
			}
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, failed.Status)
		require.Len(t, opts, 1)
		assert.Equal(t, int64(22), opts[0].PenaltyAmount)

		owner, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, owner.IsLocked)

		built := false
		_, _, err = s.FailTask(ctx, task.ID, func(*model.Task) []model.PunishmentOption {
			built = true
			return nil
		})
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		assert.False(t, built)

		_, _, err = s.FailTask(ctx, 99999, func(*model.Task) []model.PunishmentOption { return nil })
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("ConcurrentFailureStoresOneOptionSet", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "lena")
		task := newTask(t, s, u.ID, time.Hour)
		options := []model.PunishmentOption{
			{Description: "Pay 25 credits", PenaltyType: model.PenaltyCredits, PenaltyAmount: 25},
			{Description: "Lose 75 XP", PenaltyType: model.PenaltyXP, PenaltyAmount: 75},
			{Description: "Pay 40 credits", PenaltyType: model.PenaltyCredits, PenaltyAmount: 40},
		}

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					if _, _, err := s.FailTask(ctx, task.ID, func(*model.Task) []model.PunishmentOption { return options }); err == nil {
						wins.Add(1)
					} else {
						assert.ErrorIs(t, err, model.ErrInvalidTransition)
					}
					return
				}
				// Repairs racing the failure add nothing once options exist.
				_, err := s.CreatePunishments(ctx, task.ID, options)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		listed, err := s.PunishmentsForTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Len(t, listed, 3)
	})

	t.Run("CreatePunishmentsKeepsExistingOptions", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "milo")
		task := newTask(t, s, u.ID, time.Hour)

		first, err := s.CreatePunishments(ctx, task.ID, []model.PunishmentOption{
			{Description: "Pay 10 credits", PenaltyType: model.PenaltyCredits, PenaltyAmount: 10},
		})
		require.NoError(t, err)
		second, err := s.CreatePunishments(ctx, task.ID, []model.PunishmentOption{
			{Description: "Lose 30 XP", PenaltyType: model.PenaltyXP, PenaltyAmount: 30},
		})
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, first[0].ID, second[0].ID)

		_, err = s.CreatePunishments(ctx, 99999, nil)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("Achievements", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "liam")
		a, err := s.CreateAchievement(ctx, model.Achievement{UserID: u.ID, Title: "3-Day Streak", Icon: "flame", XPReward: 50})
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.False(t, a.UnlockedAt.IsZero())

		list, err := s.AchievementsForUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "3-Day Streak", list[0].Title)

		_, err = s.CreateAchievement(ctx, model.Achievement{UserID: 99999, Title: "ghost"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("TopUsersOrdering", func(t *testing.T) {
		s := newStore(t)
		a := newUser(t, s, "mia")
		b := newUser(t, s, "noah")
		c := newUser(t, s, "olga")

		_, err := s.AdjustResources(ctx, a.ID, 300, 0)
		require.NoError(t, err)
		_, err = s.AdjustResources(ctx, b.ID, 500, 0)
		require.NoError(t, err)
		level := 3
		_, err = s.UpdateUser(ctx, c.ID, model.UserUpdate{Level: &level})
		require.NoError(t, err)

		top, err := s.TopUsers(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, c.ID, top[0].ID)
		assert.Equal(t, b.ID, top[1].ID)
	})

	t.Run("Ledger", func(t *testing.T) {
		s := newStore(t)
		a := newUser(t, s, "pia")
		b := newUser(t, s, "quinn")
		task := newTask(t, s, a.ID, time.Hour)

		day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		record := func(userID int64, res model.PenaltyType, amount int64, kind model.LedgerKind, at time.Time) {
			_, err := s.RecordEntry(ctx, model.LedgerEntry{UserID: userID, Resource: res, Amount: amount, Kind: kind, CreatedAt: at})
			require.NoError(t, err)
		}
		record(a.ID, model.PenaltyXP, 200, model.LedgerTaskReward, day.Add(time.Hour))
		record(a.ID, model.PenaltyXP, -75, model.LedgerPunishment, day.Add(2*time.Hour))
		record(b.ID, model.PenaltyXP, 150, model.LedgerTaskReward, day.Add(3*time.Hour))
		record(b.ID, model.PenaltyXP, 100, model.LedgerAchievement, day.Add(4*time.Hour))
		record(b.ID, model.PenaltyCredits, 500, model.LedgerGrant, day.Add(5*time.Hour))
		record(a.ID, model.PenaltyXP, 999, model.LedgerTaskReward, day.Add(25*time.Hour))

		taskID := task.ID
		desc := "Pay 25 credits"
		withTask, err := s.RecordEntry(ctx, model.LedgerEntry{
			UserID: a.ID, Resource: model.PenaltyCredits, Amount: -25, Kind: model.LedgerPunishment,
			TaskID: &taskID, Description: &desc, CreatedAt: day.Add(6 * time.Hour),
		})
		require.NoError(t, err)
		require.NotNil(t, withTask.TaskID)
		assert.Equal(t, task.ID, *withTask.TaskID)

		leaders, err := s.DailyXPLeaders(ctx, day, day.Add(24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, leaders, 2)
		assert.Equal(t, b.ID, leaders[0].UserID)
		assert.Equal(t, "quinn", leaders[0].Username)
		assert.Equal(t, int64(250), leaders[0].XPGained)
		assert.Equal(t, int64(200), leaders[1].XPGained)

		entries, err := s.EntriesForUser(ctx, a.ID, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, withTask.ID, entries[0].ID)
		assert.Equal(t, int64(999), entries[1].Amount)

		_, err = s.RecordEntry(ctx, model.LedgerEntry{UserID: 99999, Resource: model.PenaltyXP, Amount: 1, Kind: model.LedgerGrant})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
