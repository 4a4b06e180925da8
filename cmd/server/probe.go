package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
)

func newProbeCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check credentials against the treasury webservice",
		Long: `Probe validates a username and password the same way the login form does
and reports whether the webservice accepted them. No session is created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			auth := appsettlement.NewAuthService(newUpstreamClient(cfg, log, nil), nil, authServiceConfig(cfg), nil, log)
			return runProbe(ctx, cmd.OutOrStdout(), log, auth, username, password)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "treasury username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "treasury password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// prober is satisfied by *appsettlement.AuthService.
type prober interface {
	Probe(ctx context.Context, username, password string) (string, error)
}

func runProbe(ctx context.Context, out io.Writer, log *zap.Logger, auth prober, username, password string) error {
	_, err := auth.Probe(ctx, username, password)
	switch {
	case err == nil:
		log.Info("Probe succeeded", zap.String("username", username))
		_, _ = fmt.Fprintf(out, "credentials accepted for %s\n", username)
		return nil
	case errors.Is(err, settlement.ErrInvalidCredentials):
		return fmt.Errorf("credentials rejected for %s", username)
	default:
		return fmt.Errorf("probe failed: %w", err)
	}
}
