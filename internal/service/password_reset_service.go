package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/metrics"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
	"github.com/njprem/ems_auth_backend/internal/util"
)

var (
	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token has expired")
	ErrResetTokenUsed    = errors.New("reset token has already been used")
	// ErrResetIncomplete means the token was spent but the new password could
	// not be stored. The account has to start a new recovery.
	ErrResetIncomplete = errors.New("password reset could not be completed")
)

const (
	ForgotPasswordMessage = "If an account exists with this identifier, you will receive a password reset link shortly."
	ResetSuccessMessage   = "Password has been reset successfully. You can now login with your new password."

	defaultResetTokenTTL   = time.Hour
	defaultDeliveryTimeout = 30 * time.Second
)

// RecoverySender delivers a recovery token to the account holder.
type RecoverySender interface {
	SendRecoveryMessage(ctx context.Context, account *domain.Account, token string) error
}

type PasswordResetServiceConfig struct {
	TokenTTL        time.Duration
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
	PasswordPolicy  util.PasswordPolicy
	Metrics         *metrics.Auth
}

type PasswordResetService struct {
	accounts ports.AccountRepository
	resets   ports.PasswordResetRepository
	sender   RecoverySender

	ttl             time.Duration
	deliveryTimeout time.Duration
	policy          util.PasswordPolicy
	store           storeCaller
	metrics         *metrics.Auth
	now             func() time.Time

	deliveries sync.WaitGroup
}

func NewPasswordResetService(accounts ports.AccountRepository, resets ports.PasswordResetRepository, sender RecoverySender, cfg PasswordResetServiceConfig) *PasswordResetService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultResetTokenTTL
	}
	deliveryTimeout := cfg.DeliveryTimeout
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	return &PasswordResetService{
		accounts:        accounts,
		resets:          resets,
		sender:          sender,
		ttl:             ttl,
		deliveryTimeout: deliveryTimeout,
		policy:          cfg.PasswordPolicy,
		store:           newStoreCaller(cfg.StoreTimeout),
		metrics:         cfg.Metrics,
		now:             time.Now,
	}
}

// ForgotPassword issues a recovery token when identifier names an enabled
// account (by username, then by employee email) and always answers with
// ForgotPasswordMessage. Failures are logged, never returned, so the caller
// cannot tell whether the account exists.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		s.metrics.ResetRequest("unknown_identifier")
		return ForgotPasswordMessage
	}

	account, err := s.resolveAccount(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.ResetRequest("unknown_identifier")
		} else {
			log.Printf("password reset: account lookup failed: %v", err)
			s.metrics.ResetRequest("error")
		}
		return ForgotPasswordMessage
	}
	if !account.Enabled {
		s.metrics.ResetRequest("disabled")
		return ForgotPasswordMessage
	}

	token, hash, err := util.GenerateResetToken()
	if err != nil {
		log.Printf("password reset: generate token: %v", err)
		s.metrics.ResetRequest("error")
		return ForgotPasswordMessage
	}

	err = s.store.call(ctx, func(ctx context.Context) error {
		_, err := s.resets.Issue(ctx, account.ID, hash, s.now().Add(s.ttl))
		return err
	})
	if err != nil {
		log.Printf("password reset: issue token for account %d: %v", account.ID, err)
		s.metrics.ResetRequest("error")
		return ForgotPasswordMessage
	}

	s.deliver(ctx, account, token)
	s.metrics.ResetRequest("issued")
	return ForgotPasswordMessage
}

// deliver hands the token to the sender off the request path so response
// time does not depend on mail delivery.
func (s *PasswordResetService) deliver(ctx context.Context, account *domain.Account, token string) {
	if s.sender == nil {
		log.Printf("password reset: no sender configured, token for account %d not delivered", account.ID)
		return
	}
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
		defer cancel()
		if err := s.sender.SendRecoveryMessage(sendCtx, account, token); err != nil {
			log.Printf("password reset: deliver token for account %d: %v", account.ID, err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *PasswordResetService) Wait() {
	s.deliveries.Wait()
}

// ValidateToken reports whether token is active. It never modifies state.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) error {
	_, err := s.lookupActive(ctx, token)
	return err
}

// ResetPassword spends token and stores newPassword for its account.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if _, err := s.lookupActive(ctx, token); err != nil {
		s.metrics.Reset(resetOutcome(err))
		return err
	}

	if err := s.policy.Validate(newPassword); err != nil {
		s.metrics.Reset("invalid_password")
		return fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}

	hash, salt, err := util.DerivePassword(newPassword)
	if err != nil {
		return err
	}

	var consumed *domain.PasswordReset
	err = s.store.call(ctx, func(ctx context.Context) error {
		var err error
		consumed, err = s.resets.Consume(ctx, util.HashResetToken(token), s.now())
		return err
	})
	if err != nil {
		err = mapResetError(err)
		s.metrics.Reset(resetOutcome(err))
		return err
	}

	err = s.store.call(ctx, func(ctx context.Context) error {
		return s.accounts.UpdatePassword(ctx, consumed.AccountID, hash, salt)
	})
	if err != nil {
		log.Printf("password reset: token %d consumed but password update for account %d failed: %v", consumed.ID, consumed.AccountID, err)
		s.metrics.Reset("incomplete")
		return fmt.Errorf("%w: %w", ErrResetIncomplete, err)
	}

	s.metrics.Reset("success")
	return nil
}

// SweepExpired deletes recovery tokens past their expiry.
func (s *PasswordResetService) SweepExpired(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.resets.DeleteExpired(ctx, s.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.Swept(deleted)
	return deleted, nil
}

func (s *PasswordResetService) lookupActive(ctx context.Context, token string) (*domain.PasswordReset, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrResetTokenInvalid
	}

	var reset *domain.PasswordReset
	err := s.store.read(ctx, func(ctx context.Context) error {
		var err error
		reset, err = s.resets.FindByTokenHash(ctx, util.HashResetToken(token))
		return err
	})
	if err != nil {
		return nil, mapResetError(err)
	}

	now := s.now()
	switch {
	case reset.Used:
		return nil, ErrResetTokenUsed
	case reset.Expired(now):
		return nil, ErrResetTokenExpired
	}
	return reset, nil
}

func (s *PasswordResetService) resolveAccount(ctx context.Context, identifier string) (*domain.Account, error) {
	var account *domain.Account
	err := s.store.read(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.accounts.FindByUsername(ctx, identifier)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		return account, err
	}

	err = s.store.read(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.accounts.FindByEmail(ctx, identifier)
		return err
	})
	return account, err
}

func mapResetError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrResetTokenInvalid
	case errors.Is(err, domain.ErrResetTokenUsed):
		return ErrResetTokenUsed
	case errors.Is(err, domain.ErrResetTokenExpired):
		return ErrResetTokenExpired
	default:
		return err
	}
}

func resetOutcome(err error) string {
	switch {
	case errors.Is(err, ErrResetTokenInvalid):
		return "invalid"
	case errors.Is(err, ErrResetTokenExpired):
		return "expired"
	case errors.Is(err, ErrResetTokenUsed):
		return "used"
	default:
		return "error"
	}
}
