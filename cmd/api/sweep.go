package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/njprem/ems_auth_backend/internal/config"
)

func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired password reset tokens once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.resets.SweepExpired(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("removed %d expired reset tokens\n", deleted)
			return nil
		},
	}
}
