package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// RunResult summarizes one reminder sweep.
type RunResult struct {
	Created      int  `json:"created"`
	Disabled     bool `json:"disabled"`
	ReminderDays *int `json:"reminder_days"`
}

type Service interface {
	// RunForUser scans the user's stale draft invoices and queues a payment
	// reminder follow-up for each one that has none open yet. The run is
	// always recorded, even when reminders are disabled.
	RunForUser(ctx context.Context, userID snowflake.ID) (*RunResult, error)
}

var ErrSweepRunning = errors.New("reminder_sweep_running")
