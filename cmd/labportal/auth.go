package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brizzai/labportal/internal/app"
	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/server"
	"github.com/brizzai/labportal/internal/session"
)

func (c *cli) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateAuth(); err != nil {
				return err
			}

			var mgr *session.Manager
			return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
				return c.login(ctx, mgr)
			}, &mgr)
		},
	}
}

func (c *cli) login(ctx context.Context, mgr *session.Manager) error {
	srv, err := server.NewCallbackServer(&c.cfg.Provider, &c.cfg.Session, mgr)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Shutdown() }()

	authURL, err := mgr.BeginLogin(ctx)
	if err != nil {
		return err
	}

	pterm.Info.Println("Open the following URL in your browser to sign in:")
	pterm.Println(pterm.LightCyan(authURL))

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the login callback on " + srv.URL())
	sess, err := srv.Wait(ctx)
	if err != nil {
		spinner.Fail("Sign-in failed")
		if errors.Is(err, server.ErrCallbackTimeout) || errors.Is(err, context.Canceled) {
			if abandonErr := mgr.AbandonLogin(context.WithoutCancel(ctx)); abandonErr != nil {
				logger.Warn("Failed to clear unused login state", zap.Error(abandonErr))
			}
		}
		return describeLoginError(err)
	}
	spinner.Success("Signed in")

	if name := sess.User.DisplayName(); name != "" {
		pterm.Success.Printfln("Welcome, %s", pterm.LightGreen(name))
	}
	if !sess.ExpiresAt.IsZero() {
		pterm.Info.Printfln("Session valid until %s", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func describeLoginError(err error) error {
	var perr *session.ProviderError
	switch {
	case errors.As(err, &perr):
		return err
	case errors.Is(err, server.ErrCallbackTimeout):
		return fmt.Errorf("%w, run `labportal login` again", err)
	case errors.Is(err, session.ErrStateMismatch),
		errors.Is(err, session.ErrMissingCode),
		errors.Is(err, session.ErrTokenExchangeFailed):
		return fmt.Errorf("authentication failed, run `labportal login` again: %w", err)
	default:
		return err
	}
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateAuth(); err != nil {
				return err
			}

			var mgr *session.Manager
			return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
				spinner, _ := pterm.DefaultSpinner.Start("Verifying session")
				status, err := mgr.VerifySession(ctx)
				if err != nil {
					spinner.Fail("Verification failed")
					return err
				}
				spinner.Stop()

				switch {
				case status.LoggedIn:
					pterm.Success.Printfln("Logged in as %s", pterm.LightGreen(displayName(status.User)))
				case status.Reason != nil:
					pterm.Warning.Printfln("Session ended: %v", status.Reason)
					pterm.Info.Println("Run `labportal login` to sign in again.")
				default:
					pterm.Info.Println("Not logged in.")
				}
				return nil
			}, &mgr)
		},
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateAuth(); err != nil {
				return err
			}

			var mgr *session.Manager
			return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
				user, err := mgr.FetchUserInfo(ctx)
				switch {
				case errors.Is(err, session.ErrNotLoggedIn):
					pterm.Info.Println("Not logged in.")
					return nil
				case errors.Is(err, session.ErrSessionInvalid):
					return fmt.Errorf("%w, run `labportal login` again", err)
				case err != nil:
					return err
				}

				return pterm.DefaultTable.WithData(pterm.TableData{
					{"ID", user.ID},
					{"Name", user.Name},
					{"Email", user.Email},
				}).Render()
			}, &mgr)
		},
	}
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateAuth(); err != nil {
				return err
			}

			var mgr *session.Manager
			return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
				logoutURL, err := mgr.Logout(ctx)
				if err != nil {
					return err
				}
				pterm.Success.Println("Signed out.")
				if logoutURL != "" {
					pterm.Info.Println("To end the identity provider session as well, open:")
					pterm.Println(pterm.LightCyan(logoutURL))
				}
				return nil
			}, &mgr)
		},
	}
}

func displayName(u *models.UserInfo) string {
	if name := u.DisplayName(); name != "" {
		return name
	}
	return "unknown user"
}
