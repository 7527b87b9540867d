package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/util"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	nextID   int64

	createErr         error
	findErr           error
	findErrCount      int
	updatePasswordErr error
	findCalls         int
	updateCalls       int
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[int64]*domain.Account), nextID: 1}
}

// seed stores an account with the given password and role.
func (r *memAccountRepo) seed(username, password string, role domain.Role, enabled bool) *domain.Account {
	hash, salt, err := util.DerivePassword(password)
	if err != nil {
		panic(err)
	}
	roleName := role.String()
	email := username + "@example.com"

	r.mu.Lock()
	defer r.mu.Unlock()
	account := &domain.Account{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		Enabled:      enabled,
		EmployeeID:   r.nextID + 100,
		Email:        &email,
		RoleName:     &roleName,
	}
	r.accounts[account.ID] = account
	r.nextID++
	clone := *account
	return &clone
}

func (r *memAccountRepo) Create(ctx context.Context, username string, passwordHash, passwordSalt []byte, employeeID int64) (*domain.Account, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account := &domain.Account{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: append([]byte(nil), passwordHash...),
		PasswordSalt: append([]byte(nil), passwordSalt...),
		Enabled:      true,
		EmployeeID:   employeeID,
	}
	r.accounts[account.ID] = account
	r.nextID++
	clone := *account
	return &clone, nil
}

func (r *memAccountRepo) find(ctx context.Context, match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil && r.findErrCount != 0 {
		if r.findErrCount > 0 {
			r.findErrCount--
		}
		return nil, r.findErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, account := range r.accounts {
		if match(account) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memAccountRepo) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.find(ctx, func(a *domain.Account) bool { return a.Username == username })
}

func (r *memAccountRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.find(ctx, func(a *domain.Account) bool {
		return a.Email != nil && strings.EqualFold(*a.Email, email)
	})
}

func (r *memAccountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.find(ctx, func(a *domain.Account) bool { return a.ID == id })
}

func (r *memAccountRepo) UpdatePassword(ctx context.Context, id int64, passwordHash, passwordSalt []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updatePasswordErr != nil {
		return r.updatePasswordErr
	}
	account, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	account.PasswordHash = append([]byte(nil), passwordHash...)
	account.PasswordSalt = append([]byte(nil), passwordSalt...)
	return nil
}

func (r *memAccountRepo) SetEnabled(ctx context.Context, id int64, enabled bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	account.Enabled = enabled
	clone := *account
	return &clone, nil
}

// memResetRepo mirrors the postgres semantics: one token per account and a
// check-and-set consume under a single lock.
type memResetRepo struct {
	mu        sync.Mutex
	byAccount map[int64]*domain.PasswordReset
	nextID    int64

	issueErr   error
	issueCalls int
	block      chan struct{}
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{byAccount: make(map[int64]*domain.PasswordReset), nextID: 1}
}

func (r *memResetRepo) Issue(ctx context.Context, accountID int64, tokenHash []byte, expiresAt time.Time) (*domain.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issueCalls++
	if r.issueErr != nil {
		return nil, r.issueErr
	}
	reset := &domain.PasswordReset{
		ID:        r.nextID,
		AccountID: accountID,
		TokenHash: append([]byte(nil), tokenHash...),
		ExpiresAt: expiresAt,
	}
	r.nextID++
	r.byAccount[accountID] = reset
	clone := *reset
	return &clone, nil
}

func (r *memResetRepo) lookup(tokenHash []byte) *domain.PasswordReset {
	for _, reset := range r.byAccount {
		if bytes.Equal(reset.TokenHash, tokenHash) {
			return reset
		}
	}
	return nil
}

func (r *memResetRepo) FindByTokenHash(ctx context.Context, tokenHash []byte) (*domain.PasswordReset, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reset := r.lookup(tokenHash)
	if reset == nil {
		return nil, domain.ErrNotFound
	}
	clone := *reset
	return &clone, nil
}

func (r *memResetRepo) Consume(ctx context.Context, tokenHash []byte, now time.Time) (*domain.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset := r.lookup(tokenHash)
	switch {
	case reset == nil:
		return nil, domain.ErrNotFound
	case reset.Used:
		return nil, domain.ErrResetTokenUsed
	case reset.Expired(now):
		return nil, domain.ErrResetTokenExpired
	}
	reset.Used = true
	usedAt := now
	reset.UsedAt = &usedAt
	clone := *reset
	return &clone, nil
}

func (r *memResetRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for accountID, reset := range r.byAccount {
		if reset.Expired(now) {
			delete(r.byAccount, accountID)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memResetRepo) expire(accountID int64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reset, ok := r.byAccount[accountID]; ok {
		reset.ExpiresAt = at
	}
}

type sentMessage struct {
	accountID int64
	token     string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) SendRecoveryMessage(ctx context.Context, account *domain.Account, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{accountID: account.ID, token: token})
	return s.err
}

func (s *recordingSender) tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.token)
	}
	return out
}

func newJWTManagerForTests() *util.JWTManager {
	m, err := util.NewJWTManager("test-signing-secret", "ems-auth", time.Hour)
	if err != nil {
		panic(err)
	}
	return m
}
