package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/thiagokokada/gitstage/internal/buildinfo"
	"github.com/thiagokokada/gitstage/internal/config"
	"github.com/thiagokokada/gitstage/internal/diffview"
	"github.com/thiagokokada/gitstage/internal/git/backend"
	"github.com/thiagokokada/gitstage/internal/git/index"
)

func Run() error {
	return newApp(os.Stdout, os.Stderr).Run(os.Args)
}

// session carries the resolved configuration from the global flags to the
// command actions.
type session struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	color  bool
}

func newApp(stdout, stderr io.Writer) *cli.App {
	s := &session{cfg: config.DefaultConfig(), stdout: stdout, stderr: stderr}
	return &cli.App{
		Name:      "gitstage",
		Usage:     "inspect and stage changes of a git repository",
		Version:   buildinfo.String(),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"C"},
				Value:   ".",
				Usage:   "path inside the repository",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "configuration file (default: $XDG_CONFIG_HOME/gitstage/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "git backend: cli or native",
			},
			&cli.StringFlag{
				Name:  "color",
				Value: "auto",
				Usage: "colorize diffs: auto, always or never",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "color mode: auto, light, or dark",
			},
			&cli.BoolFlag{
				Name:  "nosyntax",
				Usage: "disable syntax highlighting in diffs",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable verbose logging",
			},
		},
		Before: s.setup,
		Commands: []*cli.Command{
			s.statusCommand(),
			s.diffCommand(),
			s.hunksCommand(),
			s.fileCommand("stage", "add changes of files to the index", (*index.Controller).Stage),
			s.fileCommand("unstage", "remove staged changes of files from the index", (*index.Controller).Unstage),
			s.discardCommand(),
			s.fileCommand("revert", "restore files from the commit being built on, in index and work tree", (*index.Controller).Revert),
			s.hunkCommand("stage-hunk", "stage one hunk of a file", index.HunkStage),
			s.hunkCommand("unstage-hunk", "unstage one hunk of a file", index.HunkUnstage),
			s.hunkCommand("discard-hunk", "discard one unstaged hunk of a file", index.HunkDiscard),
			s.commitCommand(),
			s.watchCommand(),
		},
	}
}

func (s *session) setup(c *cli.Context) error {
	cfg, path, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("backend"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := c.String("mode"); v != "" {
		cfg.Theme = strings.ToLower(v)
	}
	if c.Bool("nosyntax") {
		cfg.Syntax = false
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	switch c.String("color") {
	case "always":
		s.color = true
	case "never":
		s.color = false
	case "auto":
		s.color = isTerminal(s.stdout)
	default:
		return fmt.Errorf("invalid --color %q (want auto, always or never)", c.String("color"))
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(s.stderr, &slog.HandlerOptions{Level: level})))
	if path != "" {
		slog.Debug("loaded config", slog.String("path", path))
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s *session) openBackend(repo string) (backend.Backend, error) {
	opts := backend.CLIOptions{GitBinary: s.cfg.GitBinary, Timeout: s.cfg.CommandTimeout}
	if s.cfg.Backend == config.BackendNative {
		return backend.OpenNative(repo, opts)
	}
	return backend.OpenCLI(repo, opts)
}

func (s *session) newController(c *cli.Context, opts ...index.Option) (*index.Controller, error) {
	b, err := s.openBackend(c.String("repo"))
	if err != nil {
		return nil, err
	}
	opts = append([]index.Option{
		index.WithLogger(slog.Default()),
		index.WithContextLines(s.cfg.ContextLines),
	}, opts...)
	return index.New(b, opts...), nil
}

// openController opens the repository and waits for the first scan.
func (s *session) openController(c *cli.Context, opts ...index.Option) (*index.Controller, error) {
	ctrl, err := s.newController(c, opts...)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := ctrl.RefreshAndWait(c.Context); err != nil {
		ctrl.Close()
		return nil, err
	}
	slog.Debug("initial scan done",
		slog.Int("files", len(ctrl.Changes())),
		slog.Duration("elapsed", time.Since(start)),
	)
	return ctrl, nil
}

func (s *session) renderDiff(text string) error {
	return diffview.Render(s.stdout, text, diffview.Options{
		Theme:  diffview.ThemePreferenceFromString(s.cfg.Theme),
		Color:  s.color,
		Syntax: s.cfg.Syntax,
	})
}

// progressSink logs controller progress and reports commit progress on
// stderr.
func (s *session) progressSink() index.Sink {
	return index.SinkFunc(func(e index.Event) {
		switch ev := e.(type) {
		case index.RefreshStatus:
			slog.Debug(ev.Text, slog.String("op_id", ev.OpID))
		case index.RefreshFailed:
			slog.Warn("refresh failed", slog.String("op_id", ev.OpID), slog.Any("error", ev.Err))
		case index.CommitStatus:
			fmt.Fprintln(s.stderr, ev.Text)
		}
	})
}
