// Package cli is the prompthive command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompthive/internal/clipboard"
	"github.com/dpshade/prompthive/internal/config"
	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/logger"
	"github.com/dpshade/prompthive/internal/remote"
	"github.com/dpshade/prompthive/internal/service"
	"github.com/dpshade/prompthive/internal/storage"
)

// Streams are the standard streams commands read and write.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// App carries everything a command needs. It is populated before any
// command runs.
type App struct {
	Version string
	Streams

	configPath string
	baseDir    string
	verbose    bool

	cfg    *config.Config
	logs   *logger.Logger
	svc    *service.Service
	errs   *apperrors.CLIErrorHandler
	copier *clipboard.Copier
}

// NewApp creates an application bound to streams
func NewApp(version string, streams Streams) *App {
	return &App{
		Version: version,
		Streams: streams,
		errs:    apperrors.NewCLIErrorHandler(false, logger.Nop()),
		copier:  clipboard.New(),
	}
}

// setup loads configuration and builds the service graph.
func (a *App) setup() error {
	cfg, err := config.Load(a.configPath, a.baseDir)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	logCfg := cfg.Log.Logger()
	logCfg.Output = a.Err
	a.logs = logger.New(logCfg)
	log := a.logs.Zerolog()
	a.errs = apperrors.NewCLIErrorHandler(a.verbose, a.logs.Component("cli"))

	store := storage.New(cfg.BaseDir, storage.WithLogger(log))

	var opts []service.Option
	if strings.TrimSpace(cfg.APIKey) != "" && cfg.RegistryURL != "" {
		client := remote.NewClient(cfg.RegistryURL, cfg.APIKey, cfg.Timeout,
			remote.WithLogger(log),
			remote.WithUserAgent("prompthive/"+a.Version))
		opts = append(opts, service.WithRemote(client))
	}
	a.svc = service.NewService(store, cfg.Cache, log, opts...)

	log.Debug().Str("base_dir", cfg.BaseDir).Str("registry", cfg.RegistryURL).Msg("configured")
	return nil
}

func (a *App) teardown() {
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// Execute runs the command tree with args and returns the process exit code.
func (a *App) Execute(args []string) int {
	root := a.RootCommand()
	root.SetArgs(args)
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	err := root.Execute()
	a.teardown()
	if err == nil {
		return 0
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = a.errs.HandleError(err).Error()
	}
	fmt.Fprintln(a.Err, errorStyle.Render(msg))
	return 1
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "prompthive",
		Short:         "Manage, resolve and sync prompt libraries",
		Long:          rootLong,
		Version:       a.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $BASE/config.yaml)")
	flags.StringVar(&a.baseDir, "dir", "", "library directory (default ~/.prompthive, env PROMPTHIVE_BASE_DIR)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging, detailed errors and synced items in sync status")

	root.AddCommand(
		a.initCmd(),
		a.lsCmd(),
		a.showCmd(),
		a.useCmd(),
		a.newCmd(),
		a.editCmd(),
		a.rmCmd(),
		a.mvCmd(),
		a.findCmd(),
		a.tagsCmd(),
		a.diffCmd(),
		a.importCmd(),
		a.versionCmd(),
		a.versionsCmd(),
		a.bankCmd(),
		a.teamCmd(),
		a.syncCmd(),
	)
	return root
}

const rootLong = `prompthive stores prompts as markdown files with YAML headers.

Prompts live in three namespaces:
  name          local prompt          prompts/name.md
  bank/name     prompt in a bank      banks/bank/name.md
  @team/name    team prompt           teams/team/name.md

Queries may be partial: exact names win, then short codes (initials such
as "ad" for api-design), then fuzzy matches.

Set PROMPTHIVE_API_KEY to enable 'prompthive sync'.`
