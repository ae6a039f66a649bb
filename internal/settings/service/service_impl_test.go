package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	"github.com/devmarvs/backoffice/internal/settings/domain"
	"github.com/devmarvs/backoffice/internal/settings/repository"
)

func setupSettingsTest(t *testing.T) (domain.Service, *snowflake.Node, *clock.FakeClock) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&domain.UserSettings{})
	require.NoError(t, err)

	node, _ := snowflake.NewNode(1)
	fc := clock.NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Repo:  repository.Provide(),
		Defaults: config.NewStaticBillingDefaultsHolder(config.BillingDefaults{
			Currency:            "EUR",
			FollowUpDays:        3,
			InvoiceReminderDays: 14,
		}),
	})
	return svc, node, fc
}

func ptrInt64(v int64) *int64 { return &v }
func ptrInt(v int) *int       { return &v }
func ptrStr(v string) *string { return &v }

func TestEffectiveBillingSystemDefaults(t *testing.T) {
	svc, node, _ := setupSettingsTest(t)
	userID := node.Generate()

	bc, err := svc.EffectiveBilling(context.Background(), userID, nil, nil)
	require.NoError(t, err)

	assert.Nil(t, bc.RateCents)
	assert.Equal(t, "EUR", bc.Currency)
	assert.Equal(t, 3, bc.FollowUpDays)
}

func TestEffectiveBillingCascade(t *testing.T) {
	svc, node, _ := setupSettingsTest(t)
	userID := node.Generate()

	_, err := svc.Update(context.Background(), userID, domain.UpdateSettingsRequest{
		DefaultRateCents: ptrInt64(9000),
		DefaultCurrency:  ptrStr("usd"),
		FollowUpDays:     ptrInt(7),
	})
	require.NoError(t, err)

	// User defaults beat system defaults.
	bc, err := svc.EffectiveBilling(context.Background(), userID, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, bc.RateCents)
	assert.Equal(t, int64(9000), *bc.RateCents)
	assert.Equal(t, "USD", bc.Currency)
	assert.Equal(t, 7, bc.FollowUpDays)

	// Explicit per-request values beat user defaults.
	bc, err = svc.EffectiveBilling(context.Background(), userID, ptrInt64(12500), ptrStr("chf"))
	require.NoError(t, err)
	require.NotNil(t, bc.RateCents)
	assert.Equal(t, int64(12500), *bc.RateCents)
	assert.Equal(t, "CHF", bc.Currency)
	assert.Equal(t, 7, bc.FollowUpDays)

	// Blank explicit currency falls through to the user default.
	bc, err = svc.EffectiveBilling(context.Background(), userID, nil, ptrStr("  "))
	require.NoError(t, err)
	assert.Equal(t, "USD", bc.Currency)
}

func TestUpdateIsPartial(t *testing.T) {
	svc, node, fc := setupSettingsTest(t)
	userID := node.Generate()

	first, err := svc.Update(context.Background(), userID, domain.UpdateSettingsRequest{
		DefaultRateCents: ptrInt64(4500),
		DefaultCurrency:  ptrStr("eur"),
	})
	require.NoError(t, err)
	assert.Equal(t, fc.Now(), first.UpdatedAt)

	fc.Advance(time.Hour)

	second, err := svc.Update(context.Background(), userID, domain.UpdateSettingsRequest{
		InvoiceReminderDays: ptrInt(21),
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, got.DefaultRateCents)
	assert.Equal(t, int64(4500), *got.DefaultRateCents)
	require.NotNil(t, got.DefaultCurrency)
	assert.Equal(t, "EUR", *got.DefaultCurrency)
	require.NotNil(t, got.InvoiceReminderDays)
	assert.Equal(t, 21, *got.InvoiceReminderDays)
	assert.True(t, got.UpdatedAt.Equal(second.UpdatedAt))
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))
}

func TestGetReturnsEmptySettingsForNewUser(t *testing.T) {
	svc, node, _ := setupSettingsTest(t)
	userID := node.Generate()

	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Nil(t, got.DefaultRateCents)
	assert.Nil(t, got.LastReminderRunAt)
}

func TestReminderDaysResolution(t *testing.T) {
	svc, node, _ := setupSettingsTest(t)
	ctx := context.Background()

	// No row yet: the system default applies.
	freshUser := node.Generate()
	days, err := svc.ReminderDays(ctx, freshUser)
	require.NoError(t, err)
	require.NotNil(t, days)
	assert.Equal(t, 14, *days)

	// User override wins over the system default.
	tunedUser := node.Generate()
	_, err = svc.Update(ctx, tunedUser, domain.UpdateSettingsRequest{InvoiceReminderDays: ptrInt(30)})
	require.NoError(t, err)
	days, err = svc.ReminderDays(ctx, tunedUser)
	require.NoError(t, err)
	require.NotNil(t, days)
	assert.Equal(t, 30, *days)

	// Zero is a stored value, not an absence: the sweeper reads it as disabled.
	mutedUser := node.Generate()
	_, err = svc.Update(ctx, mutedUser, domain.UpdateSettingsRequest{InvoiceReminderDays: ptrInt(0)})
	require.NoError(t, err)
	days, err = svc.ReminderDays(ctx, mutedUser)
	require.NoError(t, err)
	require.NotNil(t, days)
	assert.Equal(t, 0, *days)
}

func TestRecordReminderRun(t *testing.T) {
	svc, node, fc := setupSettingsTest(t)
	ctx := context.Background()
	userID := node.Generate()

	// Works even before the user ever touched their settings.
	err := svc.RecordReminderRun(ctx, userID, fc.Now(), 2)
	require.NoError(t, err)

	got, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReminderRunAt)
	assert.True(t, got.LastReminderRunAt.Equal(fc.Now()))
	require.NotNil(t, got.LastReminderCreated)
	assert.Equal(t, 2, *got.LastReminderCreated)

	fc.Advance(24 * time.Hour)
	err = svc.RecordReminderRun(ctx, userID, fc.Now(), 0)
	require.NoError(t, err)

	got, err = svc.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReminderRunAt)
	assert.True(t, got.LastReminderRunAt.Equal(fc.Now()))
	require.NotNil(t, got.LastReminderCreated)
	assert.Equal(t, 0, *got.LastReminderCreated)
}
