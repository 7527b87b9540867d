package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
	"github.com/njprem/ems_auth_backend/internal/util"
)

func newAuthServiceForTests(accounts ports.AccountRepository) *AuthService {
	svc := NewAuthService(accounts, newJWTManagerForTests(), AuthServiceConfig{
		StoreTimeout: time.Second,
	})
	svc.store.backoff = time.Millisecond
	return svc
}

func TestLoginIssuesTokenCarryingRole(t *testing.T) {
	ctx := context.Background()
	accounts := newMemAccountRepo()
	alice := accounts.seed("alice", "secretpw", domain.RoleManager, true)
	svc := newAuthServiceForTests(accounts)

	result, err := svc.Login(ctx, " alice ", "secretpw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected token in result")
	}
	if result.Account.ID != alice.ID || result.Role != domain.RoleManager {
		t.Fatalf("unexpected login result: %+v", result)
	}

	principal, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.AccountID != alice.ID || principal.Username != "alice" || principal.Role != domain.RoleManager {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if !principal.ExpiresAt.Equal(result.ExpiresAt) {
		t.Fatalf("expected principal expiry %v, got %v", result.ExpiresAt, principal.ExpiresAt)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.seed("alice", "secretpw", domain.RoleEmployee, true)
	accounts.seed("bob", "bobsecret", domain.RoleEmployee, false)
	svc := newAuthServiceForTests(accounts)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "alice", password: "wrongpw1"},
		{name: "unknown account", username: "mallory", password: "secretpw"},
		{name: "disabled account with correct password", username: "bob", password: "bobsecret"},
		{name: "blank username", username: "  ", password: "secretpw"},
		{name: "blank password", username: "alice", password: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.Login(context.Background(), tc.username, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if result != nil {
				t.Fatalf("expected no result, got %+v", result)
			}
		})
	}
}

func TestLoginRetriesTransientLookupFailure(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.seed("alice", "secretpw", domain.RoleEmployee, true)
	accounts.findErr = ports.ErrStoreUnavailable
	accounts.findErrCount = 1
	svc := newAuthServiceForTests(accounts)

	if _, err := svc.Login(context.Background(), "alice", "secretpw"); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if accounts.findCalls != 2 {
		t.Fatalf("expected 2 lookups, got %d", accounts.findCalls)
	}
}

func TestLoginSurfacesStoreUnavailable(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.seed("alice", "secretpw", domain.RoleEmployee, true)
	accounts.findErr = ports.ErrStoreUnavailable
	accounts.findErrCount = -1
	svc := newAuthServiceForTests(accounts)

	_, err := svc.Login(context.Background(), "alice", "secretpw")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("store failure must not look like bad credentials")
	}
	if accounts.findCalls != 3 {
		t.Fatalf("expected 3 lookups, got %d", accounts.findCalls)
	}
}

func TestRegisterCreatesEnabledAccount(t *testing.T) {
	ctx := context.Background()
	accounts := newMemAccountRepo()
	svc := newAuthServiceForTests(accounts)

	result, err := svc.Register(ctx, " carol ", "carolpass", 42)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Account.Username != "carol" || result.Account.EmployeeID != 42 || !result.Account.Enabled {
		t.Fatalf("unexpected account: %+v", result.Account)
	}
	if result.Role != domain.RoleEmployee {
		t.Fatalf("expected default role EMPLOYEE, got %s", result.Role)
	}
	if _, err := svc.Login(ctx, "carol", "carolpass"); err != nil {
		t.Fatalf("expected login with new account to succeed, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthServiceForTests(newMemAccountRepo())

	cases := []struct {
		name       string
		username   string
		password   string
		employeeID int64
		want       error
	}{
		{name: "short username", username: "ab", password: "longenough", employeeID: 1, want: ErrInvalidUsername},
		{name: "weak password", username: "dave", password: "short", employeeID: 1, want: ErrPasswordTooWeak},
		{name: "missing employee", username: "dave", password: "longenough", employeeID: 0, want: ErrEmployeeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.password, tc.employeeID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterMapsConstraintErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "username taken",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "user_account_username_key"},
			want: ErrUsernameTaken,
		},
		{
			name: "employee already linked",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintEmployeeAccount},
			want: ErrEmployeeAlreadyLinked,
		},
		{
			name: "employee missing",
			err:  &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			want: ErrEmployeeNotFound,
		},
		{
			name: "employee lookup empty",
			err:  domain.ErrNotFound,
			want: ErrEmployeeNotFound,
		},
		{
			name: "store down",
			err:  ports.ErrStoreUnavailable,
			want: ErrStoreUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accounts := newMemAccountRepo()
			accounts.createErr = tc.err
			svc := newAuthServiceForTests(accounts)

			_, err := svc.Register(context.Background(), "erin", "erinpass", 7)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := newAuthServiceForTests(newMemAccountRepo())

	other, err := util.NewJWTManager("another-secret", "ems-auth", time.Hour)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	forged, _, err := other.Issue(1, "alice", domain.RoleAdmin, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, token := range []string{"", "garbage", forged} {
		if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for %q, got %v", token, err)
		}
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.seed("alice", "secretpw", domain.RoleEmployee, true)
	svc := newAuthServiceForTests(accounts)

	result, err := svc.Login(context.Background(), "alice", "secretpw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.now = func() time.Time { return result.ExpiresAt.Add(time.Second) }

	if _, err := svc.Authenticate(context.Background(), result.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		role     domain.Role
		required []domain.Role
		want     bool
	}{
		{role: domain.RoleAdmin, required: []domain.Role{domain.RoleAdmin}, want: true},
		{role: domain.RoleManager, required: []domain.Role{domain.RoleAdmin, domain.RoleManager}, want: true},
		{role: domain.RoleEmployee, required: []domain.Role{domain.RoleAdmin}, want: false},
		{role: domain.Role("admin"), required: []domain.Role{domain.RoleAdmin}, want: false},
		{role: domain.RoleAdmin, required: nil, want: false},
	}
	for _, tc := range cases {
		if got := Authorize(tc.role, tc.required...); got != tc.want {
			t.Fatalf("Authorize(%q, %v) = %t, want %t", tc.role, tc.required, got, tc.want)
		}
	}
}

func TestToggleAccountStatus(t *testing.T) {
	ctx := context.Background()
	accounts := newMemAccountRepo()
	admin := accounts.seed("root", "rootpass", domain.RoleAdmin, true)
	alice := accounts.seed("alice", "secretpw", domain.RoleEmployee, true)
	svc := newAuthServiceForTests(accounts)

	actor := &Principal{AccountID: admin.ID, Username: admin.Username, Role: domain.RoleAdmin}
	updated, err := svc.ToggleAccountStatus(ctx, actor, alice.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if updated.Enabled {
		t.Fatal("expected account to be disabled")
	}
	if _, err := svc.Login(ctx, "alice", "secretpw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected disabled account login to fail, got %v", err)
	}

	updated, err = svc.ToggleAccountStatus(ctx, actor, alice.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !updated.Enabled {
		t.Fatal("expected account to be enabled again")
	}
	if _, err := svc.Login(ctx, "alice", "secretpw"); err != nil {
		t.Fatalf("expected re-enabled account to log in, got %v", err)
	}
}

func TestToggleAccountStatusRequiresAdmin(t *testing.T) {
	accounts := newMemAccountRepo()
	alice := accounts.seed("alice", "secretpw", domain.RoleManager, true)
	svc := newAuthServiceForTests(accounts)

	manager := &Principal{AccountID: alice.ID, Username: "alice", Role: domain.RoleManager}
	if _, err := svc.ToggleAccountStatus(context.Background(), manager, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ToggleAccountStatus(context.Background(), nil, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for missing principal, got %v", err)
	}

	admin := &Principal{AccountID: 99, Username: "root", Role: domain.RoleAdmin}
	if _, err := svc.ToggleAccountStatus(context.Background(), admin, 404); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
