// Package redisstore keeps recovery tokens in Redis. Token records expire on
// their own shortly after the token does, so DeleteExpired only has work to
// do for records still inside the retention window.
package redisstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
)

const (
	defaultPrefix    = "ems:pwreset"
	defaultRetention = time.Hour
	maxTxRetries     = 8
)

var errContention = errors.New("password reset: too much contention on key")

type record struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"account_id"`
	TokenHash string     `json:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type PasswordResetRepository struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

type Option func(*PasswordResetRepository)

// WithPrefix overrides the key namespace. Defaults to "ems:pwreset".
func WithPrefix(prefix string) Option {
	return func(r *PasswordResetRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRetention sets how long a record outlives its expiry so that late
// submissions are reported as expired rather than unknown. Defaults to 1h.
func WithRetention(d time.Duration) Option {
	return func(r *PasswordResetRepository) {
		if d > 0 {
			r.retention = d
		}
	}
}

func NewPasswordResetRepo(client redis.UniversalClient, opts ...Option) *PasswordResetRepository {
	r := &PasswordResetRepository{
		client:    client,
		prefix:    defaultPrefix,
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PasswordResetRepository) tokenKey(hashHex string) string {
	return r.prefix + ":token:" + hashHex
}

func (r *PasswordResetRepository) accountKey(accountID int64) string {
	return r.prefix + ":account:" + strconv.FormatInt(accountID, 10)
}

func (r *PasswordResetRepository) seqKey() string {
	return r.prefix + ":seq"
}

func (r *PasswordResetRepository) ttlUntil(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now()) + r.retention
	if ttl <= 0 {
		return r.retention
	}
	return ttl
}

// Issue swaps the account's token pointer and the token records inside one
// MULTI guarded by WATCH on the pointer, retrying when another issue races.
func (r *PasswordResetRepository) Issue(ctx context.Context, accountID int64, tokenHash []byte, expiresAt time.Time) (*domain.PasswordReset, error) {
	accountKey := r.accountKey(accountID)
	hashHex := hex.EncodeToString(tokenHash)

	for i := 0; i < maxTxRetries; i++ {
		var issued record
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			previous, err := tx.Get(ctx, accountKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			id, err := tx.Incr(ctx, r.seqKey()).Result()
			if err != nil {
				return err
			}

			issued = record{
				ID:        id,
				AccountID: accountID,
				TokenHash: hashHex,
				ExpiresAt: expiresAt,
				CreatedAt: r.now(),
			}
			payload, err := json.Marshal(issued)
			if err != nil {
				return err
			}
			ttl := r.ttlUntil(expiresAt)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if previous != "" && previous != hashHex {
					pipe.Del(ctx, r.tokenKey(previous))
				}
				pipe.Set(ctx, r.tokenKey(hashHex), payload, ttl)
				pipe.Set(ctx, accountKey, hashHex, ttl)
				return nil
			})
			return err
		}, accountKey)

		if err == nil {
			return issued.toDomain()
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, unavailable(err)
	}
	return nil, unavailable(errContention)
}

func (r *PasswordResetRepository) FindByTokenHash(ctx context.Context, tokenHash []byte) (*domain.PasswordReset, error) {
	data, err := r.client.Get(ctx, r.tokenKey(hex.EncodeToString(tokenHash))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, unavailable(err)
	}
	rec, err := decode(data)
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// Consume is a WATCH/MULTI check-and-set on the token record. A concurrent
// consumer that loses the race retries and then observes used=true.
func (r *PasswordResetRepository) Consume(ctx context.Context, tokenHash []byte, now time.Time) (*domain.PasswordReset, error) {
	key := r.tokenKey(hex.EncodeToString(tokenHash))

	for i := 0; i < maxTxRetries; i++ {
		var consumed record
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return domain.ErrNotFound
				}
				return err
			}
			rec, err := decode(data)
			if err != nil {
				return err
			}
			if rec.Used {
				return domain.ErrResetTokenUsed
			}
			if !now.Before(rec.ExpiresAt) {
				return domain.ErrResetTokenExpired
			}

			usedAt := now
			rec.Used = true
			rec.UsedAt = &usedAt
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			ttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = r.retention
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			if err == nil {
				consumed = *rec
			}
			return err
		}, key)

		switch {
		case err == nil:
			return consumed.toDomain()
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrResetTokenUsed),
			errors.Is(err, domain.ErrResetTokenExpired):
			return nil, err
		default:
			return nil, unavailable(err)
		}
	}
	return nil, unavailable(errContention)
}

// DeleteExpired removes expired records still held for retention, along with
// the account pointer when it still references them.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	iter := r.client.Scan(ctx, 0, r.prefix+":token:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, unavailable(err)
		}
		rec, err := decode(data)
		if err != nil {
			return deleted, err
		}
		if !rec.ExpiresAt.Before(now) {
			continue
		}

		accountKey := r.accountKey(rec.AccountID)
		err = r.client.Watch(ctx, func(tx *redis.Tx) error {
			pointer, err := tx.Get(ctx, accountKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				if pointer == rec.TokenHash {
					pipe.Del(ctx, accountKey)
				}
				return nil
			})
			return err
		}, accountKey)
		if errors.Is(err, redis.TxFailedErr) {
			// A new token was issued meanwhile; the stale record goes next sweep.
			continue
		}
		if err != nil {
			return deleted, unavailable(err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, unavailable(err)
	}
	return deleted, nil
}

func decode(data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode password reset record: %w", err)
	}
	return &rec, nil
}

func (rec record) toDomain() (*domain.PasswordReset, error) {
	hash, err := hex.DecodeString(rec.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("decode token hash: %w", err)
	}
	return &domain.PasswordReset{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		TokenHash: hash,
		ExpiresAt: rec.ExpiresAt,
		Used:      rec.Used,
		UsedAt:    rec.UsedAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
}
