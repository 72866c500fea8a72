// Package repository declares the Nutrition Ledger contract.
//
// The interfaces are split by concern so each consumer asks only for what it
// uses. internal/repository/sqlstore implements all of them.
package repository

import (
	"context"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// MealRepository stores confirmed meal analyses.
// Dates passed in are interpreted in the caller's time zone; only the
// calendar day is used.
type MealRepository interface {
	AppendDailyRecord(ctx context.Context, rec *model.DailyRecord) error
	DailyCalories(ctx context.Context, handle string, day time.Time) (float64, error)
	DailyRecords(ctx context.Context, handle string, day time.Time) ([]model.DailyRecord, error)
	WeeklyRecords(ctx context.Context, handle string, start time.Time) ([]model.DailyRecord, error)
	DistinctActiveHandles(ctx context.Context) ([]string, error)
}

type GoalRepository interface {
	UpsertGoals(ctx context.Context, handle, goals string, day time.Time) error
	GetGoals(ctx context.Context, handle string) (*model.NutritionGoals, error)
	UpsertWeightGoal(ctx context.Context, handle string, target float64, day time.Time) error
	GetWeightGoal(ctx context.Context, handle string) (*model.WeightGoal, error)
}

type WeightRepository interface {
	AppendWeightMeasurement(ctx context.Context, handle string, weight float64, day time.Time) (*model.WeightMeasurement, error)
	// WeightHistory returns measurements newest first. limit <= 0 means no limit.
	WeightHistory(ctx context.Context, handle string, limit int) ([]model.WeightMeasurement, error)
}

type ContactRepository interface {
	RememberContact(ctx context.Context, c *model.ChatContact) error
	GetContact(ctx context.Context, handle string) (*model.ChatContact, error)
}

type ReminderRepository interface {
	ScheduleReminder(ctx context.Context, r *model.Reminder) error
	// ClaimDueReminders returns pending reminders with RunAt <= now.
	ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkReminderSent(ctx context.Context, id string) error
	RetryReminder(ctx context.Context, id string, nextRun time.Time, lastErr string, maxAttempts int) error
}

// Ledger is the full contract.
type Ledger interface {
	MealRepository
	GoalRepository
	WeightRepository
	ContactRepository
	ReminderRepository
}
