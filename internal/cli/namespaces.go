package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) bankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage prompt banks",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "ls [bank]",
			Aliases: []string{"list"},
			Short:   "List banks, or the prompts in one bank",
			Args:    cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					banks, err := a.svc.ListBanks()
					if err != nil {
						return err
					}
					return a.printNames(banks, "No banks.")
				}
				keys, err := a.svc.ListBank(args[0])
				if err != nil {
					return err
				}
				names := make([]string, len(keys))
				for i, k := range keys {
					names[i] = k.String()
				}
				return a.printNames(names, "Bank is empty.")
			},
		},
		&cobra.Command{
			Use:   "rename <bank> <new-name>",
			Short: "Rename a bank and every prompt in it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.svc.RenameBank(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "%s %s → %s\n", successStyle.Render("Renamed bank"), args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <bank>",
			Short: "Delete an empty bank",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.svc.DeleteBank(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Deleted bank"), args[0])
				return nil
			},
		},
	)
	return cmd
}

func (a *App) teamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage team namespaces",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "ls [team]",
			Aliases: []string{"list"},
			Short:   "List teams, or the prompts of one team",
			Args:    cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					teams, err := a.svc.ListTeams()
					if err != nil {
						return err
					}
					for i, t := range teams {
						teams[i] = "@" + t
					}
					return a.printNames(teams, "No teams.")
				}
				keys, err := a.svc.ListTeam(args[0])
				if err != nil {
					return err
				}
				names := make([]string, len(keys))
				for i, k := range keys {
					names[i] = k.String()
				}
				return a.printNames(names, "Team has no prompts.")
			},
		},
		&cobra.Command{
			Use:   "create <team>",
			Short: "Create an empty team namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name, err := a.svc.CreateTeam(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "%s @%s\n", successStyle.Render("Created team"), name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <team>",
			Short: "Delete an empty team namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.svc.DeleteTeam(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Deleted team"), args[0])
				return nil
			},
		},
	)
	return cmd
}

func (a *App) printNames(names []string, empty string) error {
	if len(names) == 0 {
		fmt.Fprintln(a.Out, mutedStyle.Render(empty))
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(a.Out, n)
	}
	return nil
}
