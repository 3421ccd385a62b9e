package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/spf13/cobra"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/renderer"
	"github.com/dpshade/prompthive/internal/service"
)

func (a *App) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the library directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.InitLibrary(); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Initialized library at"), a.svc.Root())
			return nil
		},
	}
}

func (a *App) lsCmd() *cobra.Command {
	var (
		tag    string
		format string
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List prompts with their short codes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.svc.Entries(tag)
			if err != nil {
				return err
			}
			return a.writeEntries(entries, format)
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only prompts with this tag")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, names or json")
	return cmd
}

func (a *App) findCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "find <query>",
		Aliases: []string{"search"},
		Short:   "Fuzzy search names, descriptions and tags",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.svc.Search(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.writeEntries(entries, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, names or json")
	return cmd
}

type entryJSON struct {
	Name        string   `json:"name"`
	ShortCode   string   `json:"short_code"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Version     string   `json:"version,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

func (a *App) writeEntries(entries []service.Entry, format string) error {
	switch format {
	case "json":
		out := make([]entryJSON, len(entries))
		for i, e := range entries {
			out[i] = entryJSON{
				Name:        e.Key.String(),
				ShortCode:   e.ShortCode,
				Description: e.Metadata.Description,
				Tags:        e.Metadata.Tags,
				Version:     e.Metadata.Version,
				UpdatedAt:   e.Metadata.UpdatedAt,
			}
		}
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "names":
		for _, e := range entries {
			fmt.Fprintln(a.Out, e.Key.String())
		}
	case "text", "":
		if len(entries) == 0 {
			fmt.Fprintln(a.Out, mutedStyle.Render("No prompts. Create one with 'prompthive new <name>'."))
			return nil
		}
		width := 0
		for _, e := range entries {
			width = max(width, len(e.Key.String()))
		}
		for _, e := range entries {
			name := e.Key.String()
			line := keyStyle.Render(name) + strings.Repeat(" ", width-len(name)+2) +
				codeStyle.Render(fmt.Sprintf("%-6s", e.ShortCode)) + " " +
				models.Preview(e.Metadata.Description, 60)
			if len(e.Metadata.Tags) > 0 {
				line += " " + mutedStyle.Render("["+strings.Join(e.Metadata.Tags, ", ")+"]")
			}
			fmt.Fprintln(a.Out, line)
		}
	default:
		return apperrors.InvalidInputError(fmt.Sprintf("unknown format '%s'", format))
	}
	return nil
}

func (a *App) showCmd() *cobra.Command {
	var (
		info     bool
		markdown bool
		copyOut  bool
	)
	cmd := &cobra.Command{
		Use:   "show <query>",
		Short: "Print a prompt body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.Get(args[0])
			if err != nil {
				return err
			}

			if info {
				m := rec.Metadata
				fmt.Fprintln(a.Out, titleStyle.Render(rec.Key))
				fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("description:"), m.Description)
				if len(m.Tags) > 0 {
					fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("tags:"), strings.Join(m.Tags, ", "))
				}
				if m.Version != "" {
					fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("version:"), m.Version)
				}
				fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("created:"), m.CreatedAt)
				if m.UpdatedAt != "" {
					fmt.Fprintf(a.Out, "%s %s\n", mutedStyle.Render("updated:"), m.UpdatedAt)
				}
				fmt.Fprintln(a.Out)
			}

			body := rec.Body
			if markdown {
				r, err := markdownRenderer(100)
				if err != nil {
					return fmt.Errorf("failed to create markdown renderer: %w", err)
				}
				if body, err = r.Render(rec.Body); err != nil {
					return fmt.Errorf("failed to render markdown: %w", err)
				}
			}
			fmt.Fprintln(a.Out, strings.TrimRight(body, "\n"))

			if copyOut {
				return a.copy(cmd, rec.Body)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&info, "info", "i", false, "print metadata before the body")
	cmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "render the body as markdown")
	cmd.Flags().BoolVarP(&copyOut, "copy", "c", false, "copy the body to the clipboard")
	return cmd
}

func (a *App) useCmd() *cobra.Command {
	var (
		vars      []string
		fromStdin bool
		asJSON    bool
		copyOut   bool
	)
	cmd := &cobra.Command{
		Use:   "use <query> [input...]",
		Short: "Render a prompt, substituting {input} and other placeholders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.Get(args[0])
			if err != nil {
				return err
			}

			input := strings.Join(args[1:], " ")
			if fromStdin {
				data, err := io.ReadAll(a.In)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				input = strings.TrimRight(string(data), "\n")
			}

			r := renderer.NewRenderer()
			r.Set("name", rec.Key)
			if err := r.SetAll(vars); err != nil {
				return apperrors.InvalidInputError(err.Error())
			}

			var out string
			if asJSON {
				if out, err = r.RenderJSON(rec.Body, input); err != nil {
					return err
				}
			} else {
				out = r.RenderText(rec.Body, input)
			}
			fmt.Fprintln(a.Out, out)

			if copyOut {
				return a.copy(cmd, out)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a variable, name=value (repeatable)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read input from stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as a JSON message array")
	cmd.Flags().BoolVarP(&copyOut, "copy", "c", false, "copy the result to the clipboard")
	return cmd
}

func (a *App) copy(cmd *cobra.Command, text string) error {
	if err := a.copier.Copy(cmd.Context(), text); err != nil {
		return err
	}
	fmt.Fprintln(a.Err, successStyle.Render("Copied to clipboard"))
	return nil
}

func (a *App) newCmd() *cobra.Command {
	var (
		description string
		tags        []string
		file        string
	)
	cmd := &cobra.Command{
		Use:   "new <name> [content]",
		Short: "Create a prompt",
		Long: `Create a prompt. The body comes from the content argument, --file,
or stdin when content is "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.readBody(args, file)
			if err != nil {
				return err
			}
			key, err := a.svc.Create(args[0], models.Metadata{Description: description, Tags: tags}, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Created"), keyStyle.Render(key.String()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "one-line description")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "comma-separated tags")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the body from a file")
	return cmd
}

func (a *App) readBody(args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", apperrors.StorageError("read "+file, err)
		}
		return string(data), nil
	case len(args) > 1 && args[1] == "-":
		data, err := io.ReadAll(a.In)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case len(args) > 1:
		return args[1], nil
	default:
		return fmt.Sprintf("# %s\n\nReplace this with your prompt content.\n\nUse {input} for user input.\n", args[0]), nil
	}
}

func (a *App) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <query>",
		Aliases: []string{"delete"},
		Short:   "Delete a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.svc.Delete(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Deleted"), keyStyle.Render(key.String()))
			return nil
		},
	}
}

func (a *App) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <query> <new-name>",
		Aliases: []string{"rename"},
		Short:   "Move a prompt to a new name or namespace",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := a.svc.Rename(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s → %s\n", successStyle.Render("Moved"), keyStyle.Render(from.String()), keyStyle.Render(to.String()))
			return nil
		},
	}
}

func (a *App) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := a.svc.Tags()
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintln(a.Out, t)
			}
			return nil
		},
	}
}

func (a *App) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <query> <query>",
		Short: "Show a unified diff between two prompt bodies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := a.svc.Get(args[0])
			if err != nil {
				return err
			}
			right, err := a.svc.Get(args[1])
			if err != nil {
				return err
			}
			l, r := withNewline(left.Body), withNewline(right.Body)
			edits := myers.ComputeEdits(span.URIFromPath(left.Key), l, r)
			if len(edits) == 0 {
				fmt.Fprintln(a.Out, mutedStyle.Render("No differences"))
				return nil
			}
			fmt.Fprint(a.Out, colorDiff(fmt.Sprint(gotextdiff.ToUnified(left.Key, right.Key, l, edits))))
			return nil
		},
	}
}

func (a *App) versionCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "version <query> [tag]",
		Short: "Snapshot the current body under a version tag",
		Long: `Snapshot the current body under a version tag. Without a tag the
current version is incremented (1.0.0, 1.0.1, ...).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) > 1 {
				tag = args[1]
			}
			key, info, err := a.svc.Snapshot(args[0], tag, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s %s %s\n", successStyle.Render("Tagged"), keyStyle.Render(key.String()),
				codeStyle.Render(info.Version), mutedStyle.Render(shortHash(info.ContentHash)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "version message")
	return cmd
}

func (a *App) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <query>",
		Short: "List the version snapshots of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, versions, err := a.svc.Versions(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.Out, titleStyle.Render(key.String()))
			if len(versions) == 0 {
				fmt.Fprintln(a.Out, mutedStyle.Render("  no versions"))
			}
			for _, v := range versions {
				line := fmt.Sprintf("  %s  %s", codeStyle.Render(fmt.Sprintf("%-10s", v.Version)), mutedStyle.Render(v.CreatedAt))
				if v.Message != "" {
					line += "  " + v.Message
				}
				fmt.Fprintln(a.Out, line)
			}
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// colorDiff styles added and removed lines of a unified diff.
func colorDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = titleStyle.Render(strings.TrimSuffix(line, "\n")) + "\n"
		case strings.HasPrefix(line, "+"):
			lines[i] = successStyle.Render(strings.TrimSuffix(line, "\n")) + "\n"
		case strings.HasPrefix(line, "-"):
			lines[i] = errorStyle.Render(strings.TrimSuffix(line, "\n")) + "\n"
		case strings.HasPrefix(line, "@@"):
			lines[i] = keyStyle.Render(strings.TrimSuffix(line, "\n")) + "\n"
		}
	}
	return strings.Join(lines, "")
}

func (a *App) editCmd() *cobra.Command {
	var (
		description string
		tags        []string
		file        string
	)
	cmd := &cobra.Command{
		Use:   "edit <query> [content]",
		Short: "Change a prompt's description, tags or body",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body *string
			if len(args) > 1 || file != "" {
				b, err := a.readBody(args, file)
				if err != nil {
					return err
				}
				body = &b
			}
			flags := cmd.Flags()
			if body == nil && !flags.Changed("description") && !flags.Changed("tags") {
				return apperrors.InvalidInputError("nothing to change").
					WithDetails("pass content, --file, --description or --tags")
			}

			key, err := a.svc.Update(args[0], func(meta *models.Metadata, b *string) {
				if flags.Changed("description") {
					meta.Description = description
				}
				if flags.Changed("tags") {
					meta.Tags = tags
				}
				if body != nil {
					*b = *body
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s\n", successStyle.Render("Updated"), keyStyle.Render(key.String()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "replace tags (comma-separated)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the new body from a file")
	return cmd
}
