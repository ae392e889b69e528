package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pocketup/internal/tui"
	"pocketup/internal/updater"
)

var updateClean bool

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [core]",
		Short: "Install or update cores and their assets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, "update", updater.RunOptions{Only: firstArg(args), Clean: updateClean})
		},
	}
	cmd.Flags().BoolVar(&updateClean, "clean", false, "Delete installed cores before reinstalling them")
	return cmd
}

func newAssetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets [core]",
		Short: "Download missing assets for installed cores",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, "assets", updater.RunOptions{Only: firstArg(args), AssetsOnly: true})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runEngine(cmd *cobra.Command, title string, opts updater.RunOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, outputJSON)

	console := cmd.ErrOrStderr()
	var notes io.Writer = cmd.ErrOrStderr()
	held := &heldNotes{}
	if mode == tui.ModeTUI {
		// Nothing may write to the terminal while the table is drawn.
		console = nil
		notes = held
	}
	env, err := openEnv(console, notes)
	if err != nil {
		return err
	}
	defer env.Close()

	var status *tui.StatusWriter
	if mode == tui.ModeTUI {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
	}
	eng, err := env.engine(ctx, status)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		return err
	}

	cores, err := eng.Cores(opts)
	if err != nil {
		return err
	}

	var (
		summary updater.Summary
		runErr  error
	)
	if mode == tui.ModeTUI {
		model := tui.NewProgressModel("pocketup "+title, tui.CoreColumns())
		for _, c := range cores {
			model.AddRow(c.Identifier, tui.CoreRow(c))
		}
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		err := tui.RunWithWork(out, model, func(send func(tea.Msg)) {
			defer close(done)
			eng.SetReporter(tui.NewCoreReporter(send))
			summary, runErr = eng.Run(runCtx, opts)
		})
		// The table may exit early on ctrl-c; stop the workers and wait.
		cancel()
		<-done
		held.flush(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	} else {
		summary, runErr = eng.Run(ctx, opts)
	}

	switch mode {
	case tui.ModeJSON:
		if err := writeJSON(out, summary); err != nil {
			return err
		}
	case tui.ModePlain:
		printReports(out, summary.Reports)
		printSummary(out, summary)
	default:
		printSummary(out, summary)
	}

	return errors.Join(runErr, summaryError(summary))
}

// summaryError folds per-core failures into one error so the exit status
// reflects them.
func summaryError(s updater.Summary) error {
	errs := make([]error, 0, len(s.Errors))
	for _, e := range s.Errors {
		errs = append(errs, fmt.Errorf("%s: %s", e.Identifier, e.Message))
	}
	return errors.Join(errs...)
}
