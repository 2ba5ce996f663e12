package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MakeNowJust/heredoc"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/tujuhre12/dgrid/internal/config"
	"github.com/tujuhre12/dgrid/internal/log"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/source"
	"github.com/tujuhre12/dgrid/internal/tui/grid"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
	"github.com/tujuhre12/dgrid/internal/version"
	"github.com/tujuhre12/dgrid/internal/vscroll"
)

func init() {
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	addSourceFlags(rootCmd)
	rootCmd.Flags().BoolP("watch", "w", false, "Reload the file when it changes")
	rootCmd.Flags().Int("page-size", 0, "Show pages of this many rows instead of scrolling")
	rootCmd.Flags().Int("buffer-rows", 0, "Rows loaded beyond the viewport on each side")
	rootCmd.Flags().Int("row-drift", 0, "Rows the window may drift before a new slice is loaded")
	rootCmd.Flags().String("theme", "", "Color theme: auto, dark, light or plain")
}

var rootCmd = &cobra.Command{
	Use:   "dgrid [file]",
	Short: "Browse large tabular data files in the terminal",
	Long: heredoc.Doc(`
		dgrid shows JSON, JSON Lines, YAML and SQLite data as a sortable,
		filterable grid. Only the rows around the viewport are materialized,
		so files with millions of records scroll smoothly.
	`),
	Example: heredoc.Doc(`
		# Browse a JSON array
		dgrid users.json

		# Sort by size, largest first, then by name
		dgrid --sort size:desc --sort name files.jsonl

		# Read a table from a SQLite database and follow changes
		dgrid --table events --watch app.db

		# Page through 50 rows at a time
		dgrid --page-size 50 orders.yaml
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setupApp(cmd)
		if err != nil {
			return err
		}
		s := resolveSettings(cmd, cfg, args[0])
		if err := applyTheme(s.theme); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		records, err := loadRecords(ctx, s)
		if err != nil {
			return err
		}
		columns := buildColumns(s, records)
		sort, err := parseSort(s.source.Sort, columns)
		if err != nil {
			return err
		}
		arr, err := newProvider(s, records, sort)
		if err != nil {
			return err
		}

		g := newGrid(s, arr, columns)
		defer g.Close()

		if s.source.Watch {
			go watchSource(ctx, s, arr)
		}

		program := tea.NewProgram(
			g,
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(ctx),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func newGrid(s settings, arr *provider.Array[record], columns []grid.Column[record]) *grid.Grid[record] {
	opts := []grid.Option[record]{
		grid.WithColumns(columns...),
		grid.WithFieldFunc(fieldOf),
		grid.WithScrollProps[record](vscroll.Props{
			BufferRows:         s.grid.BufferRows,
			RowDrift:           s.grid.RowDrift,
			EstimatedRowHeight: s.grid.EstimatedRowHeight,
		}),
	}
	if s.grid.PageSize > 0 {
		opts = append(opts, grid.WithPageSize[record](s.grid.PageSize))
	}
	if s.source.ChildrenField != "" {
		opts = append(opts, grid.WithTree[record]())
	}
	return grid.New[record](arr, opts...)
}

func watchSource(ctx context.Context, s settings, arr *provider.Array[record]) {
	defer log.RecoverPanic("watch", nil)
	err := source.Watch(ctx, s.path, s.loadOptions(), source.DefaultWatchDebounce, func(records []record, err error) {
		if err != nil {
			slog.Warn("Keeping previous data after failed reload", "path", s.path, "error", err)
			return
		}
		arr.SetData(records)
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("Stopped watching source", "path", s.path, "error", err)
	}
}

// setupApp resolves the working directory, loads the config and starts file
// logging.
func setupApp(cmd *cobra.Command) (*config.Config, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	cwd, err := resolveCwd(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Init(cwd, debug)
	if err != nil {
		return nil, err
	}
	log.Setup(cfg.LogFile(), cfg.Options.Debug)
	slog.Debug("Starting", "version", version.Version, "cwd", cwd)
	return cfg, nil
}

func resolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return "", fmt.Errorf("failed to change directory: %w", err)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return cwd, nil
}

func applyTheme(name string) error {
	if name == "" {
		return nil
	}
	t, err := styles.ThemeByName(name)
	if err != nil {
		return err
	}
	styles.SetTheme(t)
	return nil
}

func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version.Version),
	); err != nil {
		os.Exit(1)
	}
}
