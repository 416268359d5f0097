package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"running-tracker/internal/model"
	"running-tracker/internal/repository"
)

const (
	codeLength = 8
	// Uppercase letters and digits minus glyphs easy to misread (I O 0 1).
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeTTL         = 10 * time.Minute
	maxCodeAttempts = 10
)

// Redemption failures surfaced to the LINE user with distinct replies.
var (
	ErrCodeNotFound = errors.New("linking code not found")
	ErrCodeExpired  = errors.New("linking code expired")
	ErrCodeUsed     = errors.New("linking code already used")
)

// LineProfile is the subset of a LINE profile the linking flow stores.
type LineProfile struct {
	UserID      string
	DisplayName string
	PictureURL  string
}

// LinkingService owns the pairing-code lifecycle between an account and a
// LINE recipient: issue, redeem, disconnect and the daily expiry sweep.
type LinkingService struct {
	users *repository.UserRepository
	codes *repository.LinkingRepository
	log   *zap.Logger
}

func NewLinkingService(users *repository.UserRepository, codes *repository.LinkingRepository, log *zap.Logger) *LinkingService {
	return &LinkingService{users: users, codes: codes, log: log}
}

// GenerateCode issues a fresh code for the user, invalidating any unused one
// first. Collisions are retried a bounded number of times; the 32^8 space
// makes exhaustion a data-corruption signal rather than bad luck.
func (s *LinkingService) GenerateCode(ctx context.Context, userID string, now time.Time) (*model.LinkingCode, error) {
	if err := s.codes.DeleteUnusedByUser(ctx, userID); err != nil {
		return nil, err
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, fmt.Errorf("generate linking code: retries exhausted")
		}
		candidate, err := randomCode()
		if err != nil {
			return nil, err
		}
		exists, err := s.codes.CodeExists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !exists {
			code = candidate
			break
		}
	}

	lc := &model.LinkingCode{
		Code:      code,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(codeTTL),
	}
	if err := s.codes.CreateCode(ctx, lc); err != nil {
		return nil, err
	}

	s.log.Info("linking code issued", zap.String("user_id", userID))
	return lc, nil
}

// Redeem consumes a code presented over LINE and connects the code's owner
// to the presenting LINE user. Expired codes are deleted on sight.
func (s *LinkingService) Redeem(ctx context.Context, code string, profile LineProfile, now time.Time) (*model.User, error) {
	lc, err := s.codes.FindCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find linking code: %w", err)
	}

	if now.After(lc.ExpiresAt) {
		if err := s.codes.DeleteCode(ctx, code); err != nil {
			s.log.Warn("delete expired code", zap.Error(err))
		}
		return nil, ErrCodeExpired
	}
	if lc.Used {
		return nil, ErrCodeUsed
	}

	// Claim before connecting: the conditional update is the single-use
	// gate if two redemptions race.
	claimed, err := s.codes.MarkUsed(ctx, code, profile.UserID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCodeUsed
	}

	user, err := s.users.ConnectLine(ctx, lc.UserID, profile.UserID, profile.DisplayName, profile.PictureURL, now)
	if err != nil {
		// Give the code back so the user can retry instead of regenerating.
		if relErr := s.codes.ReleaseCode(ctx, code); relErr != nil {
			s.log.Error("release claimed code", zap.Error(relErr))
		}
		return nil, err
	}

	if err := s.codes.DeletePending(ctx, profile.UserID); err != nil {
		s.log.Warn("delete pending line user", zap.Error(err))
	}

	s.log.Info("linking code redeemed", zap.String("user_id", user.ID))
	return user, nil
}

// Disconnect removes the user's LINE link. Schedules stay untouched; the
// user simply drops out of the notifiable set.
func (s *LinkingService) Disconnect(ctx context.Context, userID string) error {
	return s.users.DisconnectLine(ctx, userID)
}

// DisconnectByLineUserID handles an unfollow: if the LINE user was linked to
// an account, the link is removed; any pending record is dropped either way.
func (s *LinkingService) DisconnectByLineUserID(ctx context.Context, lineUserID string) error {
	user, err := s.users.FindByLineUserID(ctx, lineUserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// never linked
	case err != nil:
		return fmt.Errorf("find user by line id: %w", err)
	default:
		if err := s.users.DisconnectLine(ctx, user.ID); err != nil {
			return err
		}
		s.log.Info("line link removed on unfollow", zap.String("user_id", user.ID))
	}
	return s.codes.DeletePending(ctx, lineUserID)
}

// RememberPending stores a LINE user who followed the bot but has not linked.
func (s *LinkingService) RememberPending(ctx context.Context, profile LineProfile, now time.Time) error {
	return s.codes.SavePending(ctx, &model.PendingLineUser{
		LineUserID:  profile.UserID,
		DisplayName: profile.DisplayName,
		PictureURL:  profile.PictureURL,
		AddedAt:     now,
	})
}

// CleanupExpired deletes all codes past expiry, used or not. Runs daily.
func (s *LinkingService) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.codes.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired linking codes removed", zap.Int64("count", n))
	}
	return n, nil
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw code character: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
