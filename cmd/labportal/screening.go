package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/labportal/internal/app"
	"github.com/brizzai/labportal/internal/backend"
	"github.com/brizzai/labportal/internal/poll"
	"github.com/brizzai/labportal/internal/screening"
	"github.com/brizzai/labportal/internal/session"
)

func (c *cli) newScreeningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screening",
		Short: "Follow third-party biosecurity screenings",
	}
	cmd.AddCommand(
		c.newScreeningGetCmd(),
		c.newScreeningWaitCmd(),
	)
	return cmd
}

// withScreening resolves the stored bearer token and the backend client.
func (c *cli) withScreening(cmd *cobra.Command, fn func(ctx context.Context, b backend.Backend, token string) error) error {
	if err := c.cfg.ValidateAuth(); err != nil {
		return err
	}

	var mgr *session.Manager
	var b backend.Backend
	return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
		sess, err := mgr.Current(ctx)
		if errors.Is(err, session.ErrNotLoggedIn) {
			return fmt.Errorf("%w, run `labportal login` first", err)
		}
		if err != nil {
			return err
		}
		if err := fn(ctx, b, sess.Token); err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				return fmt.Errorf("the session is no longer accepted, run `labportal login` again: %w", err)
			}
			return err
		}
		return nil
	}, &mgr, &b)
}

func (c *cli) newScreeningGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Query the current state of a screening once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withScreening(cmd, func(ctx context.Context, b backend.Backend, token string) error {
				res, err := b.ScreeningResult(ctx, token, args[0])
				if err != nil {
					return err
				}
				return renderScreening(res)
			})
		},
	}
}

func (c *cli) newScreeningWaitCmd() *cobra.Command {
	var (
		attempts int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait <id>",
		Short: "Poll a screening until it completes or the attempt budget runs out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			policy := poll.PolicyFromConfig(&c.cfg.Polling)
			if cmd.Flags().Changed("attempts") {
				policy.MaxAttempts = attempts
			}
			if cmd.Flags().Changed("interval") {
				policy.Interval = interval
			}

			return c.withScreening(cmd, func(ctx context.Context, b backend.Backend, token string) error {
				spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for screening %s", id))
				res, outcome, err := screening.Wait(ctx, b, token, id, policy)
				if err != nil {
					spinner.Fail("Stopped waiting")
					return err
				}

				if outcome == poll.GaveUp {
					spinner.Warning(fmt.Sprintf("Screening %s did not finish after %d attempts", id, policy.MaxAttempts))
					pterm.Info.Printfln("Query it again later with `labportal screening get %s`.", id)
					if res != nil {
						return renderScreening(res)
					}
					return nil
				}

				spinner.Success(fmt.Sprintf("Screening %s %s", id, res.Status))
				return renderScreening(res)
			})
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Maximum number of polls (default polling.max_attempts)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between polls (default polling.interval)")
	return cmd
}

func renderScreening(res *backend.ScreeningResult) error {
	flagged := "no"
	if res.Flagged {
		flagged = pterm.LightRed("yes")
	}
	updated := ""
	if !res.UpdatedAt.IsZero() {
		updated = res.UpdatedAt.Local().Format(time.RFC3339)
	}
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"ID", res.ID},
		{"Provider", res.Provider},
		{"Status", string(res.Status)},
		{"Flagged", flagged},
		{"Summary", res.Summary},
		{"Updated", updated},
	}).Render()
}
