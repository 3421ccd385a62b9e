package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompthive/internal/importer"
)

func (a *App) importCmd() *cobra.Command {
	var opts importer.Options
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import markdown prompts from a directory",
		Long: `Import every .md file below a directory, such as .claude/commands.
Front matter description and tags are kept; files without a description use
their first heading. Existing prompts are skipped unless --overwrite is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp := importer.New(a.svc, a.logs.Zerolog())
			res, err := imp.Import(args[0], opts)
			if err != nil {
				return err
			}

			verb := "imported"
			if opts.DryRun {
				verb = "would import"
			}
			for _, k := range res.Imported {
				fmt.Fprintf(a.Out, "  %-12s %s\n", verb, keyStyle.Render(k.String()))
			}
			for _, k := range res.Skipped {
				fmt.Fprintf(a.Out, "  %-12s %s\n", "exists", mutedStyle.Render(k.String()))
			}
			for _, e := range res.Errors {
				fmt.Fprintf(a.Out, "  %s\n", errorStyle.Render(e.Error()))
			}
			a.printBox(
				fmt.Sprintf("%s: %d", verb, len(res.Imported)),
				fmt.Sprintf("skipped: %d", len(res.Skipped)),
				fmt.Sprintf("errors:  %d", len(res.Errors)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Bank, "bank", "b", "", "import into this bank, keeping subdirectories")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tags", "t", nil, "tags added to every imported prompt")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace existing prompts")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be imported")
	return cmd
}
