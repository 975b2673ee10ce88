package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"voice-reminders/internal/app"
	"voice-reminders/internal/auth"
	"voice-reminders/internal/config"
	"voice-reminders/internal/goals"
	"voice-reminders/internal/rbac"
	"voice-reminders/internal/schedule"
	"voice-reminders/pkg/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reminderctl",
		Short:         "Operate the voice reminder service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSweepCmd("reconcile", "Reconcile goals with the remote scheduler", (*goals.Service).ReconcileSweep),
		newSweepCmd("expire", "Retire goals whose expiry has passed", (*goals.Service).ExpireSweep),
		newPruneCmd(),
		newPreviewCmd(),
		newTokenCmd(),
	)
	return root
}

// withDeps loads config and opens the service graph for one command run.
func withDeps(ctx context.Context, fn func(ctx context.Context, d *app.Deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env, "reminderctl")
	ctx = logger.With(ctx, log)

	d, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const sweepLockTTL = 5 * time.Minute

// newSweepCmd shares the "sweep:<name>" lock keys with the HTTP triggers.
func newSweepCmd(use, short string, sweep func(*goals.Service, context.Context) (goals.SweepReport, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				if d.Locker != nil {
					release, proceed := lockSweep(ctx, d.Locker, use, cmd.ErrOrStderr())
					if !proceed {
						return nil
					}
					defer release(context.WithoutCancel(ctx))
				}
				report, err := sweep(d.Goals, ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), report.Message())
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

type sweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// lockSweep takes the sweep lock. A lock error is reported and the sweep
// runs unlocked, matching the HTTP triggers; only a held lock stops it.
func lockSweep(ctx context.Context, l sweepLocker, name string, w io.Writer) (func(context.Context) error, bool) {
	noop := func(context.Context) error { return nil }
	release, ok, err := l.TryLock(ctx, "sweep:"+name, sweepLockTTL)
	if err != nil {
		fmt.Fprintf(w, "sweep lock unavailable, running unlocked: %v\n", err)
		return noop, true
	}
	if !ok {
		fmt.Fprintln(w, "sweep already running")
		return noop, false
	}
	return release, true
}

func newPruneCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "prune-orphans",
		Short: "List remote jobs no goal references; delete them with --apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				out, err := d.Goals.PruneOrphanJobs(ctx, "reminderctl", apply)
				if err != nil {
					return err
				}
				if !apply && len(out) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d orphan jobs found; rerun with --apply to delete\n", len(out))
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "delete the orphan jobs")
	return cmd
}

// now is replaced in tests.
var now = time.Now

type previewOutput struct {
	Schedule  schedule.Schedule `json:"schedule"`
	RunAt     *time.Time        `json:"run_at,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	NextRuns  []time.Time       `json:"next_runs"`
}

func newPreviewCmd() *cobra.Command {
	var (
		typ     string
		tz      string
		runAt   string
		expires string
		count   int
	)
	cmd := &cobra.Command{
		Use:   "preview [minute hour day month weekday]",
		Short: "Encode a schedule and print its next runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && runAt == "" {
				return fmt.Errorf("an expression or --run-at is required")
			}
			req := schedule.Request{
				Type:     schedule.Type(typ),
				RunAt:    runAt,
				Timezone: tz,
				Expiry:   expires,
			}
			if len(args) == 1 {
				req.Expression = args[0]
			}
			if runAt != "" {
				req.Type = schedule.TypeOneTime
			}
			enc := &schedule.Encoder{Now: now}
			out, err := enc.Encode(req)
			if err != nil {
				return err
			}
			runs, err := schedule.Preview(out, now(), count)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), previewOutput{
				Schedule:  out.Schedule,
				RunAt:     out.RunAt,
				ExpiresAt: out.ExpiresAt,
				NextRuns:  runs,
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(schedule.TypeRecurring), "onetime or recurring")
	cmd.Flags().StringVar(&tz, "tz", schedule.DefaultTimezone, "IANA timezone or alias")
	cmd.Flags().StringVar(&runAt, "run-at", "", "one-time run as YYYY-MM-DDThh:mm in --tz")
	cmd.Flags().StringVar(&expires, "expires", "", "recurring expiry as YYYY-MM-DDThh:mm in --tz, or RFC 3339")
	cmd.Flags().IntVar(&count, "count", 5, "number of runs to show")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed dev access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token minting is disabled in production")
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), userID, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject user id")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", rbac.RoleAuthenticated, "role claim (authenticated or service_role)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
