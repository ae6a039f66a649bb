package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/followup/domain"
	"github.com/devmarvs/backoffice/internal/followup/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupFollowUpService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec(`CREATE TABLE follow_ups (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		due_at DATETIME NOT NULL,
		suggested_message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		source_type TEXT,
		source_id BIGINT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create follow_ups: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_follow_ups_open_source
		ON follow_ups (user_id, source_type, source_id)
		WHERE status = 'open' AND source_type IS NOT NULL`).Error; err != nil {
		t.Fatalf("create follow_ups index: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func TestCreateSecondOpenForSameSourceIsNoOp(t *testing.T) {
	svc, db, node := setupFollowUpService(t)
	userID := node.Generate()
	clientID := node.Generate()
	sourceID := node.Generate()
	sourceType := domain.SourceWorkEvent

	req := domain.CreateFollowUpRequest{
		ClientID:         clientID,
		DueAt:            time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC),
		SuggestedMessage: "ping them",
		SourceType:       &sourceType,
		SourceID:         &sourceID,
	}

	first, err := svc.Create(context.Background(), nil, userID, req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first == nil {
		t.Fatalf("first create returned nil")
	}

	second, err := svc.Create(context.Background(), nil, userID, req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second != nil {
		t.Fatalf("second create should be a no-op, got %v", second)
	}

	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM follow_ups WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestCreateAllowsNewOpenAfterDone(t *testing.T) {
	svc, _, node := setupFollowUpService(t)
	userID := node.Generate()
	clientID := node.Generate()
	sourceID := node.Generate()
	sourceType := domain.SourceInvoiceDraft

	req := domain.CreateFollowUpRequest{
		ClientID:         clientID,
		DueAt:            time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC),
		SuggestedMessage: "pay up",
		SourceType:       &sourceType,
		SourceID:         &sourceID,
	}

	first, err := svc.Create(context.Background(), nil, userID, req)
	if err != nil || first == nil {
		t.Fatalf("first create: %v %v", first, err)
	}
	if _, err := svc.Transition(context.Background(), userID, first.ID, domain.StatusDone); err != nil {
		t.Fatalf("transition: %v", err)
	}

	second, err := svc.Create(context.Background(), nil, userID, req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second == nil {
		t.Fatalf("second create should succeed once the first is done")
	}
}

func TestCreateWithoutSourceNeverDedupes(t *testing.T) {
	svc, db, node := setupFollowUpService(t)
	userID := node.Generate()
	clientID := node.Generate()

	req := domain.CreateFollowUpRequest{
		ClientID:         clientID,
		DueAt:            time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC),
		SuggestedMessage: "manual nudge",
	}
	for i := 0; i < 2; i++ {
		fu, err := svc.Create(context.Background(), nil, userID, req)
		if err != nil || fu == nil {
			t.Fatalf("create %d: %v %v", i, fu, err)
		}
	}

	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM follow_ups WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestTransitionRejectsTerminalRows(t *testing.T) {
	svc, _, node := setupFollowUpService(t)
	userID := node.Generate()

	fu, err := svc.Create(context.Background(), nil, userID, domain.CreateFollowUpRequest{
		ClientID:         node.Generate(),
		DueAt:            time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC),
		SuggestedMessage: "hello",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Transition(context.Background(), userID, fu.ID, domain.StatusDismissed); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if _, err := svc.Transition(context.Background(), userID, fu.ID, domain.StatusDone); err != domain.ErrInvalidTransition {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Transition(context.Background(), userID, fu.ID, domain.StatusOpen); err != domain.ErrInvalidStatus {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestTransitionUnknownRow(t *testing.T) {
	svc, _, node := setupFollowUpService(t)

	if _, err := svc.Transition(context.Background(), node.Generate(), node.Generate(), domain.StatusDone); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
