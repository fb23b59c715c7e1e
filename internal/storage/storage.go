package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meal-plan-generator/internal/quota"
)

var ErrPlanNotFound = errors.New("plan not found")

// StoredPlan is a persisted plan payload.
type StoredPlan struct {
	ID        string
	UserID    string
	Payload   []byte
	CreatedAt time.Time
}

// Store persists users and meal plans in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store on top of an open connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUsage reads a user's tier and monthly counter. Unknown users yield quota.ErrUserNotFound.
func (s *Store) GetUsage(ctx context.Context, userID string) (quota.Usage, error) {
	var (
		usage    quota.Usage
		lastPlan int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tier, monthly_plan_count, last_plan_date FROM users WHERE id = ?`, userID,
	).Scan(&usage.Tier, &usage.MonthlyPlanCount, &lastPlan)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Usage{}, quota.ErrUserNotFound
	}
	if err != nil {
		return quota.Usage{}, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	if lastPlan > 0 {
		usage.LastPlanDate = time.Unix(lastPlan, 0).UTC()
	}
	return usage, nil
}

// SaveUsage upserts a user's tier and monthly counter.
func (s *Store) SaveUsage(ctx context.Context, userID string, usage quota.Usage) error {
	var lastPlan int64
	if !usage.LastPlanDate.IsZero() {
		lastPlan = usage.LastPlanDate.Unix()
	}
	tier := usage.Tier
	if tier == "" {
		tier = quota.TierFree
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tier, monthly_plan_count, last_plan_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tier = excluded.tier,
			monthly_plan_count = excluded.monthly_plan_count,
			last_plan_date = excluded.last_plan_date`,
		userID, tier, usage.MonthlyPlanCount, lastPlan, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	return nil
}

// SetTier assigns a subscription tier, creating the user when missing. The monthly counter is kept.
func (s *Store) SetTier(ctx context.Context, userID, tier string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tier, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tier = excluded.tier`,
		userID, tier, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set tier for %s: %w", userID, err)
	}
	return nil
}

// SavePlan upserts a serialized plan.
func (s *Store) SavePlan(ctx context.Context, plan StoredPlan) error {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, plan_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_data = excluded.plan_data,
			updated_at = excluded.updated_at`,
		plan.ID, plan.UserID, plan.Payload, plan.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}
	return nil
}

// GetPlan loads a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id string) (StoredPlan, error) {
	p := StoredPlan{ID: id}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, plan_data, created_at FROM meal_plans WHERE id = ?`, id,
	).Scan(&p.UserID, &p.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return StoredPlan{}, fmt.Errorf("failed to query plan %s: %w", id, err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

// RecentPlans lists a user's plans created at or after since, newest first.
func (s *Store) RecentPlans(ctx context.Context, userID string, since time.Time, limit int) ([]StoredPlan, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_data, created_at FROM meal_plans
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id
		LIMIT ?`,
		userID, since.Unix(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		p := StoredPlan{UserID: userID}
		var created int64
		if err := rows.Scan(&p.ID, &p.Payload, &created); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0).UTC()
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
