package redisstore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
)

var _ ports.PasswordResetRepository = (*PasswordResetRepository)(nil)

func newTestRepo(t *testing.T) (*PasswordResetRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewPasswordResetRepo(client, WithPrefix("test:pwreset")), mr
}

func hashOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestIssueAndFind(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)
	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	issued, err := repo.Issue(ctx, 7, hashOf(1), expiresAt)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if issued.AccountID != 7 || issued.Used {
		t.Fatalf("unexpected issued record: %+v", issued)
	}

	found, err := repo.FindByTokenHash(ctx, hashOf(1))
	if err != nil {
		t.Fatalf("FindByTokenHash returned error: %v", err)
	}
	if found.ID != issued.ID || !found.ExpiresAt.Equal(expiresAt) || !bytes.Equal(found.TokenHash, hashOf(1)) {
		t.Fatalf("unexpected found record: %+v", found)
	}
	if ttl := mr.TTL("test:pwreset:account:7"); ttl <= time.Hour {
		t.Fatalf("expected ttl beyond expiry for retention, got %v", ttl)
	}

	if _, err := repo.FindByTokenHash(ctx, hashOf(9)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueSupersedesPreviousToken(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	expiresAt := time.Now().Add(time.Hour)

	if _, err := repo.Issue(ctx, 7, hashOf(1), expiresAt); err != nil {
		t.Fatalf("first Issue returned error: %v", err)
	}
	if _, err := repo.Issue(ctx, 7, hashOf(2), expiresAt); err != nil {
		t.Fatalf("second Issue returned error: %v", err)
	}

	if _, err := repo.FindByTokenHash(ctx, hashOf(1)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected superseded token to be gone, got %v", err)
	}
	if _, err := repo.Consume(ctx, hashOf(1), time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected consume of superseded token to fail with ErrNotFound, got %v", err)
	}
	if _, err := repo.Consume(ctx, hashOf(2), time.Now()); err != nil {
		t.Fatalf("expected newest token to be consumable, got %v", err)
	}
}

func TestConsumeOutcomes(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	now := time.Now()

	if _, err := repo.Issue(ctx, 1, hashOf(1), now.Add(time.Hour)); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	consumed, err := repo.Consume(ctx, hashOf(1), now)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if !consumed.Used || consumed.UsedAt == nil {
		t.Fatalf("expected consumed record to be marked used: %+v", consumed)
	}
	if _, err := repo.Consume(ctx, hashOf(1), now); !errors.Is(err, domain.ErrResetTokenUsed) {
		t.Fatalf("expected ErrResetTokenUsed, got %v", err)
	}

	if _, err := repo.Issue(ctx, 2, hashOf(2), now.Add(-time.Minute)); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := repo.Consume(ctx, hashOf(2), now); !errors.Is(err, domain.ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
	stored, err := repo.FindByTokenHash(ctx, hashOf(2))
	if err != nil {
		t.Fatalf("FindByTokenHash returned error: %v", err)
	}
	if stored.Used {
		t.Fatalf("expired token must not be marked used")
	}
}

func TestConsumeIsAtMostOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	now := time.Now()

	if _, err := repo.Issue(ctx, 1, hashOf(3), now.Add(time.Hour)); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		used      int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Consume(ctx, hashOf(3), now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrResetTokenUsed):
				used++
			default:
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", successes)
	}
	if used != workers-1 {
		t.Fatalf("expected %d ErrResetTokenUsed results, got %d", workers-1, used)
	}
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)
	now := time.Now()

	if _, err := repo.Issue(ctx, 1, hashOf(1), now.Add(-time.Minute)); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := repo.Issue(ctx, 2, hashOf(2), now.Add(time.Hour)); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}
	if mr.Exists("test:pwreset:account:1") {
		t.Fatalf("expected account pointer of expired token to be removed")
	}
	if _, err := repo.FindByTokenHash(ctx, hashOf(2)); err != nil {
		t.Fatalf("expected active token to survive sweep, got %v", err)
	}

	again, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("second DeleteExpired returned error: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent sweep, got %d deletions", again)
	}
}

func TestUnavailableBackend(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	repo := NewPasswordResetRepo(client)
	mr.Close()

	if _, err := repo.FindByTokenHash(ctx, hashOf(1)); !errors.Is(err, ports.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := repo.Consume(ctx, hashOf(1), time.Now()); !errors.Is(err, ports.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Consume, got %v", err)
	}
}
