// Package model defines the data models for the quest tracker.
package model

import "time"

// Difficulty grades a task and selects its XP band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	// DifficultyUnspecified lets the generator pick a tier.
	DifficultyUnspecified Difficulty = ""
)

// Difficulties lists the concrete tiers in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// Valid reports whether d is one of the concrete tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ProofType is the kind of evidence a task expects on completion.
type ProofType string

const (
	ProofPhoto ProofType = "photo"
	ProofText  ProofType = "text"
)

// Valid reports whether p is a known proof type.
func (p ProofType) Valid() bool {
	return p == ProofPhoto || p == ProofText
}

// Creator records who created a task.
type Creator string

const (
	CreatedByUser Creator = "user"
	CreatedByAI   Creator = "ai"
)

// PenaltyType is the resource a punishment draws from.
type PenaltyType string

const (
	PenaltyCredits PenaltyType = "credits"
	PenaltyXP      PenaltyType = "xp"
)

// Valid reports whether p is a known penalty type.
func (p PenaltyType) Valid() bool {
	return p == PenaltyCredits || p == PenaltyXP
}

// Penalty is the cost a failed task carries.
type Penalty struct {
	Type   PenaltyType `json:"type"`
	Amount int64       `json:"amount"`
}

// Initial values for a freshly registered user.
const (
	InitialLevel = 1
	InitialXPass = 100
)

// User is a quest tracker account and its progression counters.
// IsLocked is true while a failed task of this user has no selected
// punishment option.
type User struct {
	ID            int64      `db:"id" json:"id"`
	Username      string     `db:"username" json:"username"`
	Email         string     `db:"email" json:"email"`
	DisplayName   string     `db:"display_name" json:"displayName"`
	Level         int        `db:"level" json:"level"`
	XP            int64      `db:"xp" json:"xp"`
	XPass         int64      `db:"xpass" json:"xpass"`
	Title         string     `db:"title" json:"title"`
	Streak        int        `db:"streak" json:"streak"`
	IsLocked      bool       `db:"is_locked" json:"isLocked"`
	LastLoginDate *time.Time `db:"last_login_date" json:"lastLoginDate,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// NewUser holds the fields supplied at registration.
type NewUser struct {
	Username    string `validate:"required,max=64"`
	Email       string `validate:"required,email"`
	DisplayName string `validate:"max=128"`
}

// UserUpdate is a partial update. Nil fields are left unchanged.
type UserUpdate struct {
	DisplayName   *string
	Level         *int
	Title         *string
	Streak        *int
	IsLocked      *bool
	LastLoginDate *time.Time
}

// Task is a unit of work owned by one user.
// XPReward and FailurePenalty never change after creation.
type Task struct {
	ID                 int64      `db:"id" json:"id"`
	UserID             int64      `db:"user_id" json:"userId"`
	Title              string     `db:"title" json:"title"`
	Description        string     `db:"description" json:"description"`
	Category           string     `db:"category" json:"category"`
	Difficulty         Difficulty `db:"difficulty" json:"difficulty"`
	ProofType          ProofType  `db:"proof_type" json:"proofType"`
	XPReward           int64      `db:"xp_reward" json:"xpReward"`
	Status             Status     `db:"status" json:"status"`
	CreatedBy          Creator    `db:"created_by" json:"createdBy"`
	AIRecommendation   *string    `db:"ai_recommendation" json:"aiRecommendation,omitempty"`
	IsSpecialChallenge bool       `db:"is_special_challenge" json:"isSpecialChallenge"`
	FailurePenalty     *Penalty   `db:"failure_penalty" json:"failurePenalty,omitempty"`
	ExpiresAt          time.Time  `db:"expires_at" json:"expiresAt"`
	CompletedAt        *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	Proof              *string    `db:"proof" json:"proof,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
}

// IsExpired reports whether an active task is past its deadline at now.
func (t *Task) IsExpired(now time.Time) bool {
	return t.Status == StatusActive && t.ExpiresAt.Before(now)
}

// TaskDraft is task content not yet persisted, as produced by the
// generator or submitted by a user.
type TaskDraft struct {
	Title              string
	Description        string
	Category           string
	Difficulty         Difficulty
	ProofType          ProofType
	XPReward           int64
	CreatedBy          Creator
	AIRecommendation   *string
	IsSpecialChallenge bool
	FailurePenalty     *Penalty
	ExpiresAt          time.Time
}

// NewTask is a draft bound to its owner.
type NewTask struct {
	UserID int64
	TaskDraft
}

// TaskUpdate is a partial update of task content. Nil fields are left
// unchanged. Status moves only through a transition.
type TaskUpdate struct {
	Title            *string
	Description      *string
	Category         *string
	AIRecommendation *string
	ExpiresAt        *time.Time
}

// PunishmentOption is a candidate penalty for a failed task.
type PunishmentOption struct {
	ID            int64       `db:"id" json:"id"`
	TaskID        int64       `db:"task_id" json:"taskId"`
	Description   string      `db:"description" json:"description"`
	PenaltyType   PenaltyType `db:"penalty_type" json:"penaltyType"`
	PenaltyAmount int64       `db:"penalty_amount" json:"penaltyAmount"`
	IsSelected    bool        `db:"is_selected" json:"isSelected"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// Achievement is a reward granted outside the task lifecycle.
type Achievement struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"userId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	XPReward    int64     `db:"xp_reward" json:"xpReward"`
	UnlockedAt  time.Time `db:"unlocked_at" json:"unlockedAt"`
}

// LedgerKind says why a resource balance changed.
type LedgerKind string

const (
	LedgerTaskReward  LedgerKind = "task_reward"
	LedgerPunishment  LedgerKind = "punishment"
	LedgerAchievement LedgerKind = "achievement"
	LedgerGrant       LedgerKind = "grant"
)

// LedgerEntry records one change of a user's xp or xpass. Amount is the
// requested delta; the balance itself floors at zero.
type LedgerEntry struct {
	ID          int64       `db:"id" json:"id"`
	UserID      int64       `db:"user_id" json:"userId"`
	Resource    PenaltyType `db:"resource" json:"resource"`
	Amount      int64       `db:"amount" json:"amount"`
	Kind        LedgerKind  `db:"kind" json:"kind"`
	TaskID      *int64      `db:"task_id" json:"taskId,omitempty"`
	Description *string     `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// DailyRank is a user's XP gained on one day.
type DailyRank struct {
	UserID   int64  `db:"user_id" json:"userId"`
	Username string `db:"username" json:"username"`
	XPGained int64  `db:"xp_gained" json:"xpGained"`
}
