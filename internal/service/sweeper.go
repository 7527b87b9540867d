package service

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically removes expired recovery tokens until its context ends.
type Sweeper struct {
	resets   *PasswordResetService
	interval time.Duration
}

func NewSweeper(resets *PasswordResetService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{resets: resets, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.resets.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("password reset sweep failed: %v", err)
		}
		return
	}
	if deleted > 0 {
		log.Printf("password reset sweep removed %d expired tokens", deleted)
	}
}
