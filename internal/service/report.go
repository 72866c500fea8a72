// Package service assembles the read models of the operations API from
// ledger queries. Handlers stay HTTP-only and the ledger stays SQL-only.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/nutrition"
	"github.com/chuikova-e/nutritioner-bot/internal/repository"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// ReportLedger is the read side of the ledger the reports use.
type ReportLedger interface {
	repository.MealRepository
	repository.GoalRepository
	repository.WeightRepository
}

type DayReport struct {
	Handle   string              `json:"handle"`
	Date     string              `json:"date"`
	Calories float64             `json:"calories"`
	Target   *float64            `json:"calorie_target,omitempty"`
	Records  []model.DailyRecord `json:"records"`
}

type WeightReport struct {
	Handle       string                    `json:"handle"`
	Change       string                    `json:"change"`
	TargetWeight *float64                  `json:"target_weight,omitempty"`
	WeeksToGoal  *float64                  `json:"weeks_to_goal,omitempty"`
	History      []model.WeightMeasurement `json:"history"`
}

type GoalsReport struct {
	Handle       string   `json:"handle"`
	Goals        string   `json:"goals,omitempty"`
	CalorieGoal  *float64 `json:"calorie_target,omitempty"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type ReportService struct {
	ledger ReportLedger
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewReportService(ledger ReportLedger, loc *time.Location, logger *slog.Logger) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{ledger: ledger, loc: loc, now: time.Now, logger: logger}
}

// Today reports the handle's intake for the current local day.
func (s *ReportService) Today(ctx context.Context, handle string) (*DayReport, error) {
	handle, err := normalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	day := s.now().In(s.loc)

	records, err := s.ledger.DailyRecords(ctx, handle, day)
	if err != nil {
		return nil, fmt.Errorf("service: daily records: %w", err)
	}
	total, err := s.ledger.DailyCalories(ctx, handle, day)
	if err != nil {
		return nil, fmt.Errorf("service: daily calories: %w", err)
	}

	rep := &DayReport{
		Handle:   handle,
		Date:     day.Format(model.DateLayout),
		Calories: total,
		Records:  records,
	}

	goals, err := s.ledger.GetGoals(ctx, handle)
	switch {
	case err == nil:
		if target, ok := nutrition.CalorieTarget(goals.Goals); ok {
			rep.Target = &target
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service: goals: %w", err)
	}
	return rep, nil
}

// Weight reports up to limit measurements, newest first. limit <= 0 means
// DefaultHistoryLimit.
func (s *ReportService) Weight(ctx context.Context, handle string, limit int) (*WeightReport, error) {
	handle, err := normalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return nil, apperror.ValidationFailed("limit", fmt.Sprintf("limit must be at most %d", MaxHistoryLimit))
	}

	history, err := s.ledger.WeightHistory(ctx, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("service: weight history: %w", err)
	}
	if len(history) == 0 {
		return nil, apperror.NotFound("weight history", handle)
	}

	rep := &WeightReport{
		Handle:  handle,
		Change:  nutrition.WeightChange(history),
		History: history,
	}

	goal, err := s.ledger.GetWeightGoal(ctx, handle)
	switch {
	case err == nil:
		target := goal.TargetWeight
		rep.TargetWeight = &target
		if weeks, ok := nutrition.WeeksToTarget(history, target); ok && weeks > 0 {
			rep.WeeksToGoal = &weeks
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service: weight goal: %w", err)
	}
	return rep, nil
}

// Goals reports both goals. It is NotFound only when neither is set.
func (s *ReportService) Goals(ctx context.Context, handle string) (*GoalsReport, error) {
	handle, err := normalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	rep := &GoalsReport{Handle: handle}
	found := false

	goals, err := s.ledger.GetGoals(ctx, handle)
	switch {
	case err == nil:
		found = true
		rep.Goals = goals.Goals
		rep.UpdatedAt = goals.UpdatedAt
		if target, ok := nutrition.CalorieTarget(goals.Goals); ok {
			rep.CalorieGoal = &target
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service: goals: %w", err)
	}

	wg, err := s.ledger.GetWeightGoal(ctx, handle)
	switch {
	case err == nil:
		found = true
		target := wg.TargetWeight
		rep.TargetWeight = &target
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service: weight goal: %w", err)
	}

	if !found {
		return nil, apperror.NotFound("goals", handle)
	}
	return rep, nil
}

// normalizeHandle accepts "@Alice" and "alice" alike.
func normalizeHandle(handle string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if h == "" {
		return "", apperror.ValidationFailed("handle", "handle is required")
	}
	return h, nil
}
