package main

import (
	"os/signal"
	"syscall"

	"outbound-dialer/internal/config"
	"outbound-dialer/internal/jobs"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-attach runs to campaigns interrupted by a restart",
	Long: "Finds started campaigns left In Progress or Paused and launches a resumed run for each one that still has contacts to dial. " +
		"With RUN_LAUNCHER=amqp the runs are queued for workers; otherwise they run here until they finish or the command is interrupted.",
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var inline *jobs.InlineLauncher
	if a.Config.Jobs.Launcher == config.LauncherAMQP {
		conn, ch, err := a.DialAMQP()
		if err != nil {
			return err
		}
		defer conn.Close()
		launcher, err := jobs.NewAMQPLauncher(ch, a.Config.Jobs.Queue)
		if err != nil {
			return err
		}
		defer launcher.Close()
		a.Dialer.UseLauncher(launcher)
	} else {
		inline = jobs.NewInlineLauncher(ctx, a.Dialer, a.Log)
		a.Dialer.UseLauncher(inline)
	}

	n, err := a.Dialer.Recover(ctx)
	a.Log.Info("recovery launched runs", "launched", n)
	if inline != nil {
		inline.Wait()
	}
	return err
}
