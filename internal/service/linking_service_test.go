package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"running-tracker/internal/model"
	"running-tracker/internal/repository"
)

var codeFormat = regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)

func newLinkingService(t *testing.T) (*LinkingService, *repository.UserRepository, *repository.LinkingRepository) {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	codes := repository.NewLinkingRepository(db)
	return NewLinkingService(users, codes, zap.NewNop()), users, codes
}

func TestGenerateCode_FormatAndExpiry(t *testing.T) {
	svc, users, _ := newLinkingService(t)
	user := seedUser(t, users, "U1")
	now := time.Now()

	code, err := svc.GenerateCode(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !codeFormat.MatchString(code.Code) {
		t.Fatalf("code %q is not 8 chars from the restricted alphabet", code.Code)
	}
	if got := code.ExpiresAt.Sub(now); got != 10*time.Minute {
		t.Fatalf("expiry = %v after issue, want 10m", got)
	}
}

func TestGenerateCode_InvalidatesPreviousCode(t *testing.T) {
	svc, users, _ := newLinkingService(t)
	user := seedUser(t, users, "U1")
	now := time.Now()

	first, err := svc.GenerateCode(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("generate first: %v", err)
	}
	second, err := svc.GenerateCode(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("generate second: %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("both calls produced %q, want distinct codes", first.Code)
	}

	profile := LineProfile{UserID: "L1", DisplayName: "runner"}
	if _, err := svc.Redeem(context.Background(), first.Code, profile, now); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("redeeming the invalidated code: err = %v, want ErrCodeNotFound", err)
	}
	if _, err := svc.Redeem(context.Background(), second.Code, profile, now); err != nil {
		t.Fatalf("redeeming the fresh code: %v", err)
	}
}

func TestRedeem_ConnectsUserAndConsumesCode(t *testing.T) {
	svc, users, codes := newLinkingService(t)
	user := seedUser(t, users, "")
	now := time.Now()

	code, err := svc.GenerateCode(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	profile := LineProfile{UserID: "L9", DisplayName: "走る人", PictureURL: "https://example.com/p.png"}
	linked, err := svc.Redeem(context.Background(), code.Code, profile, now)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if linked.ID != user.ID {
		t.Fatalf("linked user %s, want %s", linked.ID, user.ID)
	}
	if !linked.Line.IsConnected || linked.Line.UserID != "L9" {
		t.Fatalf("line link not set: %+v", linked.Line)
	}
	if linked.Notifications.ReminderMinutesBefore != 60 {
		t.Fatalf("lead = %d, want default 60", linked.Notifications.ReminderMinutesBefore)
	}

	stored, err := codes.FindCode(context.Background(), code.Code)
	if err != nil {
		t.Fatalf("reload code: %v", err)
	}
	if !stored.Used || stored.LinkedLineUserID != "L9" || stored.UsedAt == nil {
		t.Fatalf("code not consumed: %+v", stored)
	}

	// Single use: the same code cannot link a second account.
	if _, err := svc.Redeem(context.Background(), code.Code, profile, now); !errors.Is(err, ErrCodeUsed) {
		t.Fatalf("second redemption: err = %v, want ErrCodeUsed", err)
	}
}

func TestRedeem_ConnectFailureReleasesCode(t *testing.T) {
	svc, users, codes := newLinkingService(t)
	now := time.Now()

	// A code whose owner does not exist yet makes the connect step fail.
	code, err := svc.GenerateCode(context.Background(), "not-registered", now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	profile := LineProfile{UserID: "L3", DisplayName: "runner"}
	if _, err := svc.Redeem(context.Background(), code.Code, profile, now); err == nil {
		t.Fatal("expected redeem to fail when the owning account is missing")
	}

	stored, err := codes.FindCode(context.Background(), code.Code)
	if err != nil {
		t.Fatalf("reload code: %v", err)
	}
	if stored.Used || stored.UsedAt != nil || stored.LinkedLineUserID != "" {
		t.Fatalf("failed redemption must not consume the code: %+v", stored)
	}

	// Once the account exists the same code still works.
	user := &model.User{ID: "not-registered", Email: "late@example.com"}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	linked, err := svc.Redeem(context.Background(), code.Code, profile, now)
	if err != nil {
		t.Fatalf("retry redeem: %v", err)
	}
	if linked.ID != user.ID || !linked.Line.IsConnected {
		t.Fatalf("retry did not link the account: %+v", linked.Line)
	}
}

func TestRedeem_ExpiredCodeIsDeleted(t *testing.T) {
	svc, users, codes := newLinkingService(t)
	user := seedUser(t, users, "")
	issued := time.Now()

	code, err := svc.GenerateCode(context.Background(), user.ID, issued)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	late := issued.Add(11 * time.Minute)
	if _, err := svc.Redeem(context.Background(), code.Code, LineProfile{UserID: "L1"}, late); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}
	if _, err := codes.FindCode(context.Background(), code.Code); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expired code should be deleted, got err = %v", err)
	}
}

func TestRedeem_UnknownCode(t *testing.T) {
	svc, _, _ := newLinkingService(t)
	if _, err := svc.Redeem(context.Background(), "ZZZZZZZZ", LineProfile{UserID: "L1"}, time.Now()); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v, want ErrCodeNotFound", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, users, codes := newLinkingService(t)
	now := time.Now()

	stale := seedUser(t, users, "")
	fresh := seedUser(t, users, "Ufresh")
	if _, err := svc.GenerateCode(context.Background(), stale.ID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("generate stale: %v", err)
	}
	kept, err := svc.GenerateCode(context.Background(), fresh.ID, now)
	if err != nil {
		t.Fatalf("generate fresh: %v", err)
	}

	removed, err := svc.CleanupExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := codes.FindCode(context.Background(), kept.Code); err != nil {
		t.Fatalf("fresh code should survive the sweep: %v", err)
	}
}

func TestDisconnectByLineUserID(t *testing.T) {
	svc, users, _ := newLinkingService(t)
	user := seedUser(t, users, "L7")

	if err := svc.DisconnectByLineUserID(context.Background(), "L7"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	reloaded, err := users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Line.IsConnected || reloaded.Line.UserID != "" {
		t.Fatalf("line link should be cleared: %+v", reloaded.Line)
	}

	// Unfollow from a LINE user we never linked is not an error.
	if err := svc.DisconnectByLineUserID(context.Background(), "Lunknown"); err != nil {
		t.Fatalf("disconnect unknown: %v", err)
	}
}

func TestPendingLineUserLifecycle(t *testing.T) {
	svc, users, codes := newLinkingService(t)
	user := seedUser(t, users, "")
	now := time.Now()

	profile := LineProfile{UserID: "Lp", DisplayName: "pending"}
	if err := svc.RememberPending(context.Background(), profile, now); err != nil {
		t.Fatalf("remember pending: %v", err)
	}

	code, err := svc.GenerateCode(context.Background(), user.ID, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), code.Code, profile, now); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Redemption clears the pending record; deleting again is a no-op.
	if err := codes.DeletePending(context.Background(), "Lp"); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
}
