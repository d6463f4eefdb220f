package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
)

func main() {
	Execute()
}

// cli carries the state shared by all subcommands of one invocation.
type cli struct {
	cfg       *config.Config
	assumeYes bool
}

// newRootCmd represents the base command
func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "labportal",
		Short: "Command line client for the lab services portal",
		Long: `labportal signs you in to the lab services portal, keeps your session
valid, manages the workflow canvases saved on this machine and follows
biosecurity screenings until they finish.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Place version check in PreRun to ensure flags are parsed first
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				pterm.Info.Println(config.GetVersionInfo())
				os.Exit(0)
			}

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := logger.InitLogger(&cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().BoolVarP(&c.assumeYes, "yes", "y", false, "Answer yes to every confirmation")

	rootCmd.AddCommand(
		c.newLoginCmd(),
		c.newStatusCmd(),
		c.newWhoamiCmd(),
		c.newLogoutCmd(),
		c.newCanvasCmd(),
		c.newScreeningCmd(),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	_ = logger.Sync()

	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// confirm asks question unless --yes was given.
func (c *cli) confirm(question string) (bool, error) {
	if c.assumeYes {
		return true, nil
	}
	return pterm.DefaultInteractiveConfirm.
		WithDefaultText(question).
		WithDefaultValue(false).
		Show()
}
