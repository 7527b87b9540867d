package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/metrics"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
	"github.com/njprem/ems_auth_backend/internal/util"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnauthenticated       = errors.New("invalid or expired session")
	ErrPasswordTooWeak       = errors.New("password does not meet requirements")
	ErrInvalidUsername       = errors.New("username must be between 3 and 50 characters")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrEmployeeAlreadyLinked = errors.New("employee already has an account")
	ErrAccountNotFound       = errors.New("account not found")
	ErrForbidden             = errors.New("forbidden")
	ErrStoreUnavailable      = errors.New("store temporarily unavailable")
)

const constraintEmployeeAccount = "user_account_employee_id_key"

// Principal is the identity resolved from a session token. It is passed
// explicitly to every call that needs to know who is acting.
type Principal struct {
	AccountID int64
	Username  string
	Role      domain.Role
	ExpiresAt time.Time
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
	Role      domain.Role
}

type AuthServiceConfig struct {
	PasswordPolicy util.PasswordPolicy
	StoreTimeout   time.Duration
	Metrics        *metrics.Auth
}

type AuthService struct {
	accounts ports.AccountRepository
	tokens   *util.JWTManager
	policy   util.PasswordPolicy
	store    storeCaller
	metrics  *metrics.Auth
	now      func() time.Time
}

func NewAuthService(accounts ports.AccountRepository, tokens *util.JWTManager, cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		policy:   cfg.PasswordPolicy,
		store:    newStoreCaller(cfg.StoreTimeout),
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// Authorize reports whether role is one of required.
func Authorize(role domain.Role, required ...domain.Role) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// Login checks the username and password. Unknown usernames, disabled
// accounts and wrong passwords all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.metrics.Login("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	var account *domain.Account
	err := s.store.read(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.accounts.FindByUsername(ctx, username)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			util.BurnPasswordCheck(password)
			s.metrics.Login("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		s.metrics.Login("error")
		return nil, err
	}

	passwordOK := util.VerifyPassword(password, account.PasswordSalt, account.PasswordHash)
	if !passwordOK || !account.Enabled {
		s.metrics.Login("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueSession(account)
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}
	s.metrics.Login("success")
	return result, nil
}

// Register creates an enabled account bound to an existing employee and
// signs the new account in.
func (s *AuthService) Register(ctx context.Context, username, password string, employeeID int64) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if n := len([]rune(username)); n < 3 || n > 50 {
		s.metrics.Registration("invalid")
		return nil, ErrInvalidUsername
	}
	if employeeID <= 0 {
		s.metrics.Registration("invalid")
		return nil, ErrEmployeeNotFound
	}
	if err := s.policy.Validate(password); err != nil {
		s.metrics.Registration("invalid")
		return nil, fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}

	hash, salt, err := util.DerivePassword(password)
	if err != nil {
		return nil, err
	}

	var account *domain.Account
	err = s.store.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.accounts.Create(ctx, username, hash, salt, employeeID)
		return err
	})
	if err != nil {
		err = mapAccountWriteError(err)
		s.metrics.Registration("rejected")
		return nil, err
	}

	result, err := s.issueSession(account)
	if err != nil {
		return nil, err
	}
	s.metrics.Registration("success")
	return result, nil
}

// Authenticate turns a bearer token into a Principal without touching the
// store; tokens stay valid until they expire.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(strings.TrimSpace(token), s.now())
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &Principal{
		AccountID: claims.AccountID,
		Username:  claims.Username,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ToggleAccountStatus flips the enabled flag of an account. Only ADMIN may do it.
func (s *AuthService) ToggleAccountStatus(ctx context.Context, actor *Principal, accountID int64) (*domain.Account, error) {
	if actor == nil || !Authorize(actor.Role, domain.RoleAdmin) {
		return nil, ErrForbidden
	}

	var current *domain.Account
	err := s.store.read(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.accounts.FindByID(ctx, accountID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	var updated *domain.Account
	err = s.store.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.accounts.SetEnabled(ctx, accountID, !current.Enabled)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	log.Printf("account %d enabled=%t by %s", updated.ID, updated.Enabled, actor.Username)
	return updated, nil
}

func (s *AuthService) issueSession(account *domain.Account) (*LoginResult, error) {
	role := account.Role()
	token, expiresAt, err := s.tokens.Issue(account.ID, account.Username, role, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
		Role:      role,
	}, nil
}

func mapAccountWriteError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrEmployeeNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == constraintEmployeeAccount {
				return ErrEmployeeAlreadyLinked
			}
			return ErrUsernameTaken
		case pgerrcode.ForeignKeyViolation:
			return ErrEmployeeNotFound
		}
	}
	return err
}
