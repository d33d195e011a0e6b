package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/thiagokokada/gitstage/internal/git/backend"
	"github.com/thiagokokada/gitstage/internal/git/index"
	"github.com/thiagokokada/gitstage/internal/watch"
)

func (s *session) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "list changed files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "short", Aliases: []string{"s"}, Usage: "one line per file"},
			&cli.BoolFlag{Name: "amend", Usage: "compare staged changes against the parent of HEAD"},
		},
		Action: func(c *cli.Context) error {
			ctrl, err := s.openController(c)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			if c.Bool("amend") {
				if err := ctrl.SetAmend(c.Context, true); err != nil {
					return err
				}
			}
			s.printStatus(ctrl.Changes(), c.Bool("short"))
			return nil
		},
	}
}

func (s *session) printStatus(files []index.ChangedFile, short bool) {
	if short {
		for _, f := range files {
			fmt.Fprintln(s.stdout, f.String())
		}
		return
	}
	if len(files) == 0 {
		fmt.Fprintln(s.stdout, "No changes")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(s.stdout)
	tw.AppendHeader(table.Row{"", "Path", "Staged", "Unstaged"})
	for _, f := range files {
		tw.AppendRow(table.Row{f.Symbol(), f.Path, mark(f.HasStagedChanges), mark(f.HasUnstagedChanges)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter},
	})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

func mark(b bool) string {
	if b {
		return "x"
	}
	return ""
}

func (s *session) diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "show the staged or unstaged diff of files",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "staged", Aliases: []string{"cached"}, Usage: "show changes in the index"},
			&cli.IntFlag{Name: "unified", Aliases: []string{"U"}, Value: -1, Usage: "lines of context (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("diff: no paths given")
			}
			ctrl, err := s.openController(c)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			files, err := s.lookupFiles(ctrl, c.String("repo"), c.Args().Slice())
			if err != nil {
				return err
			}
			lines := s.cfg.ContextLines
			if n := c.Int("unified"); n >= 0 {
				lines = uint(n)
			}
			for _, f := range files {
				out, err := ctrl.Diff(c.Context, f, c.Bool("staged"), lines)
				if err != nil {
					return err
				}
				if err := s.renderDiff(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (s *session) hunksCommand() *cli.Command {
	return &cli.Command{
		Name:      "hunks",
		Usage:     "list the hunks of a file with their numbers",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "staged", Aliases: []string{"cached"}, Usage: "list hunks of the staged diff"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("hunks: expected exactly one path")
			}
			ctrl, err := s.openController(c)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			files, err := s.lookupFiles(ctrl, c.String("repo"), c.Args().Slice())
			if err != nil {
				return err
			}
			out, err := ctrl.Diff(c.Context, files[0], c.Bool("staged"), s.cfg.ContextLines)
			if err != nil {
				return err
			}
			d, err := index.ParseDiff(out)
			if err != nil {
				return err
			}
			if d.Binary {
				fmt.Fprintf(s.stdout, "%s: binary file\n", files[0].Path)
				return nil
			}
			for i, h := range d.Hunks {
				fmt.Fprintf(s.stdout, "%d\t%s\t+%d -%d\n", i, h.Header, h.Added(), h.Removed())
			}
			return nil
		},
	}
}

type fileOp func(*index.Controller, context.Context, []index.ChangedFile) error

func (s *session) fileCommand(name, usage string, op fileOp) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PATH...",
		Action: func(c *cli.Context) error {
			return s.runFileOp(c, name, op)
		},
	}
}

func (s *session) discardCommand() *cli.Command {
	return &cli.Command{
		Name:      "discard",
		Usage:     "throw away unstaged changes of tracked files",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm that changes are lost"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return errors.New("discard: changes cannot be recovered, pass --yes to confirm")
			}
			return s.runFileOp(c, "discard", (*index.Controller).Discard)
		},
	}
}

func (s *session) runFileOp(c *cli.Context, name string, op fileOp) error {
	if c.NArg() == 0 {
		return fmt.Errorf("%s: no paths given", name)
	}
	ctrl, err := s.openController(c, index.WithSink(s.progressSink()))
	if err != nil {
		return err
	}
	defer ctrl.Close()
	files, err := s.lookupFiles(ctrl, c.String("repo"), c.Args().Slice())
	if err != nil {
		return err
	}
	if err := op(ctrl, c.Context, files); err != nil {
		var berr *backend.Error
		if errors.As(err, &berr) && berr.Kind == backend.KindPartialFailure {
			for _, p := range berr.Paths {
				fmt.Fprintf(s.stderr, "%s: %v\n", p.Path, p.Err)
			}
		}
		return err
	}
	s.printStatus(ctrl.Changes(), true)
	return nil
}

func (s *session) hunkCommand(name, usage string, mode index.HunkMode) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PATH HUNK",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("%s: expected a path and a hunk number", name)
			}
			n, err := strconv.Atoi(c.Args().Get(1))
			if err != nil || n < 0 {
				return fmt.Errorf("%s: invalid hunk number %q", name, c.Args().Get(1))
			}
			ctrl, err := s.openController(c, index.WithSink(s.progressSink()))
			if err != nil {
				return err
			}
			defer ctrl.Close()
			files, err := s.lookupFiles(ctrl, c.String("repo"), c.Args().Slice()[:1])
			if err != nil {
				return err
			}
			if err := ctrl.ApplyHunk(c.Context, files[0], n, mode); err != nil {
				return err
			}
			s.printStatus(ctrl.Changes(), true)
			return nil
		},
	}
}

func (s *session) commitCommand() *cli.Command {
	return &cli.Command{
		Name:  "commit",
		Usage: "record the staged changes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "commit message"},
			&cli.StringFlag{Name: "file", Aliases: []string{"F"}, Usage: "read the commit message from a file"},
			&cli.BoolFlag{Name: "amend", Usage: "replace the HEAD commit, reusing its message when none is given"},
			&cli.BoolFlag{Name: "no-verify", Aliases: []string{"n"}, Usage: "skip the pre-commit and commit-msg hooks"},
		},
		Action: func(c *cli.Context) error {
			message := c.String("message")
			if file := c.String("file"); file != "" {
				if message != "" {
					return errors.New("commit: --message and --file are mutually exclusive")
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("commit: %w", err)
				}
				message = string(data)
			}

			var sha string
			progress := s.progressSink()
			sink := index.SinkFunc(func(e index.Event) {
				progress.Notify(e)
				if ev, ok := e.(index.CommitFinished); ok {
					sha = ev.SHA
				}
			})
			ctrl, err := s.openController(c, index.WithSink(sink))
			if err != nil {
				return err
			}
			defer ctrl.Close()
			if c.Bool("amend") {
				if err := ctrl.SetAmend(c.Context, true); err != nil {
					return err
				}
				if strings.TrimSpace(message) == "" {
					message = ctrl.AmendMessage()
				}
			}
			if err := ctrl.Commit(c.Context, message, !c.Bool("no-verify")); err != nil {
				return err
			}
			fmt.Fprintf(s.stdout, "[%s] %s\n", shortSHA(sha), firstLine(message))
			return nil
		},
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func (s *session) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print the changed files whenever the repository changes",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := make(index.ChannelSink, 16)
			ctrl, err := s.newController(c, index.WithSink(events))
			if err != nil {
				return err
			}
			defer func() {
				go func() {
					for range events {
					}
				}()
				ctrl.Close()
				close(events)
			}()

			if s.cfg.AutoRefresh {
				w, err := watch.New(ctrl.RepoPath(), s.cfg.RefreshDebounce, func() { ctrl.Refresh() })
				if err != nil {
					return err
				}
				defer w.Close()
			}
			ctrl.Refresh()

			for {
				select {
				case <-ctx.Done():
					return nil
				case e := <-events:
					switch ev := e.(type) {
					case index.IndexUpdated:
						fmt.Fprintln(s.stdout, "---")
						s.printStatus(ev.Files, true)
					case index.RefreshFailed:
						slog.Warn("refresh failed", slog.Any("error", ev.Err))
					}
				}
			}
		},
	}
}

// lookupFiles maps paths, relative to the --repo directory, to the current
// collection entries. Paths without changes are passed on so the controller
// reports them per path.
func (s *session) lookupFiles(ctrl *index.Controller, repoFlag string, args []string) ([]index.ChangedFile, error) {
	base, err := filepath.Abs(repoFlag)
	if err != nil {
		return nil, err
	}
	paths, err := repoRelative(ctrl.RepoPath(), base, args)
	if err != nil {
		return nil, err
	}
	files := make([]index.ChangedFile, 0, len(paths))
	for _, p := range paths {
		f, ok := ctrl.Lookup(p)
		if !ok {
			f = index.NewChangedFile(p)
		}
		files = append(files, f)
	}
	return files, nil
}
