package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompthive/internal/cloudsync"
)

// engine returns the sync engine, requiring an API key first.
func (a *App) engine() (*cloudsync.Engine, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return a.svc.Sync()
}

func (a *App) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Two-way sync with the registry",
		Long: `Without a subcommand, classify every prompt, refuse to continue while
conflicts exist, then push local-only prompts and pull cloud-only ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.Bidirectional(cmd.Context())
			if report.Aborted {
				fmt.Fprintln(a.Out, warningStyle.Render("Sync aborted. Resolve these conflicts first:"))
				for _, name := range report.Status.Names(cloudsync.Conflict) {
					fmt.Fprintf(a.Out, "  ! %s\n", name)
				}
			}
			if err != nil {
				return err
			}
			a.printBox(
				fmt.Sprintf("pushed:  %d (%d failed)", report.Pushed, report.PushFailed),
				fmt.Sprintf("pulled:  %d (%d failed)", report.Pulled, report.PullFailed),
				fmt.Sprintf("synced:  %d", report.Status.Count(cloudsync.Synced)),
			)
			return nil
		},
	}

	cmd.AddCommand(a.syncStatusCmd(), a.syncPushCmd(), a.syncPullCmd(), a.syncResolveCmd(), a.syncVerifyCmd())
	return cmd
}

func (a *App) syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Classify every local and cloud prompt",
		Long: `Classify every local and cloud prompt. Prompts that need attention are
listed one per line; with --verbose synced prompts are listed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.Status(cmd.Context())
			if err != nil {
				return err
			}

			for _, it := range report.Items {
				if it.State == cloudsync.Synced && !a.verbose {
					continue
				}
				symbol, style := stateStyle(it.State)
				line := fmt.Sprintf("%s %-40s %s", style.Render(symbol), it.Name, mutedStyle.Render(it.State.String()))
				if len(it.Reasons) > 0 {
					line += mutedStyle.Render(" (" + strings.Join(it.Reasons, ", ") + ")")
				}
				if it.Err != nil {
					line += " " + errorStyle.Render(it.Err.Error())
				}
				fmt.Fprintln(a.Out, line)
			}

			a.printBox(
				fmt.Sprintf("synced:       %d", report.Count(cloudsync.Synced)),
				fmt.Sprintf("pending push: %d", report.Count(cloudsync.PendingPush)),
				fmt.Sprintf("pending pull: %d", report.Count(cloudsync.PendingPull)),
				fmt.Sprintf("conflicts:    %d", report.Count(cloudsync.Conflict)),
				fmt.Sprintf("errors:       %d", report.Count(cloudsync.Error)),
			)
			for _, step := range report.NextSteps() {
				fmt.Fprintf(a.Out, "→ %s\n", step)
			}
			return nil
		},
	}
}

func (a *App) syncPushCmd() *cobra.Command {
	var (
		pattern string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "push [name...]",
		Short: "Upload local prompts in one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.Push(cmd.Context(), cloudsync.Selection{Names: args, Pattern: pattern}, force)
			for _, it := range report.Items {
				line := fmt.Sprintf("  %-10s %s", it.Status, it.Name)
				if it.Error != "" {
					line += " " + errorStyle.Render(it.Error)
				}
				fmt.Fprintln(a.Out, line)
			}
			if len(report.Items) > 0 || report.Message != "" {
				lines := []string{
					fmt.Sprintf("created:   %d", report.Created),
					fmt.Sprintf("updated:   %d", report.Updated),
					fmt.Sprintf("conflicts: %d", report.Conflicts),
					fmt.Sprintf("errors:    %d", report.Errors),
				}
				if report.Message != "" {
					lines = append(lines, report.Message)
				}
				a.printBox(lines...)
			}
			if err != nil {
				return err
			}
			if report.Conflicts > 0 && !force {
				fmt.Fprintln(a.Out, warningStyle.Render("Use --force to overwrite cloud copies, or 'sync resolve <name>'."))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "glob over names, e.g. 'essentials/**'")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite cloud copies")
	return cmd
}

func (a *App) syncPullCmd() *cobra.Command {
	var (
		pattern string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "pull [name...]",
		Short: "Download cloud prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.Pull(cmd.Context(), cloudsync.Selection{Names: args, Pattern: pattern}, force)
			if err != nil {
				return err
			}
			for _, it := range report.Items {
				line := fmt.Sprintf("  %-10s %s", it.Outcome, it.Name)
				if it.Err != nil {
					line += " " + errorStyle.Render(it.Err.Error())
				}
				fmt.Fprintln(a.Out, line)
			}
			a.printBox(
				fmt.Sprintf("pulled:     %d", report.Pulled),
				fmt.Sprintf("updated:    %d", report.Updated),
				fmt.Sprintf("up to date: %d", report.UpToDate),
				fmt.Sprintf("conflicts:  %d", report.Conflicts),
				fmt.Sprintf("missing:    %d", report.Missing),
				fmt.Sprintf("errors:     %d", report.Errors),
			)
			if report.Conflicts > 0 && !force {
				fmt.Fprintln(a.Out, warningStyle.Render("Use --force to overwrite local copies, or 'sync resolve <name>'."))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "glob over names, e.g. '@team/*'")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite local copies")
	return cmd
}

func (a *App) syncResolveCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Settle a conflict by picking a side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cloudsync.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			result, err := eng.Resolve(cmd.Context(), args[0], s)
			if err != nil {
				return err
			}

			switch s {
			case cloudsync.StrategyLocal:
				fmt.Fprintf(a.Out, "%s %s (%s)\n", successStyle.Render("Kept local copy of"), keyStyle.Render(result.Name), result.PushStatus)
			case cloudsync.StrategyCloud:
				fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Took cloud copy of"), keyStyle.Render(result.Name))
			case cloudsync.StrategyManual:
				fmt.Fprintf(a.Out, "%s %s\n", titleStyle.Render(result.Name), mutedStyle.Render("differs in "+strings.Join(result.Reasons, ", ")))
				fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("local:"), result.LocalPreview)
				fmt.Fprintf(a.Out, "%s %s\n\n", mutedStyle.Render("cloud:"), result.RemotePreview)
				if result.Diff != "" {
					fmt.Fprint(a.Out, colorDiff(result.Diff))
				}
				fmt.Fprintln(a.Out, mutedStyle.Render("Edit the local file, then run 'sync resolve "+result.Name+" --strategy local'."))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "manual", "local, cloud or manual")
	return cmd
}

func (a *App) syncVerifyCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "verify [name...]",
		Short: "Check that local prompts match the cloud without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			report, err := eng.Verify(cmd.Context(), cloudsync.Selection{Names: args, Pattern: pattern})
			if err != nil {
				return err
			}
			for _, it := range report.Items {
				if it.State == cloudsync.Synced {
					continue
				}
				symbol, style := stateStyle(it.State)
				fmt.Fprintf(a.Out, "%s %s %s\n", style.Render(symbol), it.Name, mutedStyle.Render(it.State.String()))
			}
			a.printBox(
				fmt.Sprintf("verified:    %d/%d", report.Verified, report.Total),
				fmt.Sprintf("missing:     %d", report.Missing),
				fmt.Sprintf("out of sync: %d", report.OutOfSync),
				fmt.Sprintf("errors:      %d", report.Errors),
				fmt.Sprintf("success:     %d%%", report.SuccessRate),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "glob over names")
	return cmd
}

func (a *App) printBox(lines ...string) {
	fmt.Fprintln(a.Out, summaryStyle.Render(strings.Join(lines, "\n")))
}
