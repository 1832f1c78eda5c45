package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"babcia/config"
	"babcia/internal/app"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/services"

	"github.com/spf13/cobra"
)

// appFactory builds the full application; replaced in tests
var appFactory = app.New

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "babciactl",
		Short:         "Operator tooling for the Babcia room scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTokenCmd(),
		newTestKeyCmd(),
		newCamerasCmd(),
		newWakeCmd(),
	)
	return root
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the API and event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			token, err := services.NewAuthService(cfg.APIJWTSecret).IssueToken(args[0], ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", services.DefaultTokenTTL, "token lifetime")
	return cmd
}

func newTestKeyCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "test-key",
		Short: "Check the stored analysis API key, or the one given with --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				request := roomsController.TestCredentialRequest{}
				if key != "" {
					request.APIKey = &key
				}

				ok, err := a.Controllers.Rooms.TestCredential(ctx, request)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("analysis API rejected the key")
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), "key accepted")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "key to test instead of the stored one")
	return cmd
}

func newCamerasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cameras",
		Short: "List the cameras the configured bridge exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cameras, err := a.Controllers.Rooms.ListCameras(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ENTITY\tNAME\tSTATE")
				for _, camera := range cameras {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", camera.EntityID, camera.Name, camera.State)
				}
				return w.Flush()
			})
		},
	}
}

func newWakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "Run one background wake now, scanning every due room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				scanned := a.Services.Scheduler.RunWakeNow(ctx)

				next := "none"
				if at := a.Services.Scheduler.NextWake(); at != nil {
					next = at.Format(time.RFC3339)
				}

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "scanned: %t\nnext wake: %s\n", scanned, next)
				return err
			})
		},
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := appFactory(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(ctx, a)
}
