package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/colorprofile"
	"github.com/spf13/cobra"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tui/grid"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type dumpOptions struct {
	output string
	start  int
	count  int
	width  int
	filter string
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	addSourceFlags(dumpCmd)
	dumpCmd.Flags().StringP("output", "o", outputText, "Output format: text, json or yaml")
	dumpCmd.Flags().Int("start", 0, "Index of the first row")
	dumpCmd.Flags().Int("count", 20, "Number of rows; zero prints all")
	dumpCmd.Flags().Int("width", 0, "Maximum line width (default terminal width)")
	dumpCmd.Flags().String("filter", "", "Fuzzy filter applied before slicing")
	dumpCmd.Flags().Bool("no-color", false, "Disable colors")
}

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Print a window of rows",
	Long:  `Sort, filter and slice a data file the way the grid does and print the resulting rows.`,
	Example: heredoc.Doc(`
		# First 20 rows as a table
		dgrid dump users.json

		# Rows 100 to 149, largest first, as JSON
		dgrid dump --sort size:desc --start 100 --count 50 -o json files.jsonl

		# Matching rows as YAML
		dgrid dump --filter alice -o yaml users.yaml
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setupApp(cmd)
		if err != nil {
			return err
		}
		s := resolveSettings(cmd, cfg, args[0])

		var opts dumpOptions
		opts.output, _ = cmd.Flags().GetString("output")
		opts.start, _ = cmd.Flags().GetInt("start")
		opts.count, _ = cmd.Flags().GetInt("count")
		opts.width, _ = cmd.Flags().GetInt("width")
		opts.filter, _ = cmd.Flags().GetString("filter")

		noColor, _ := cmd.Flags().GetBool("no-color")
		out := dumpWriter(cmd.OutOrStdout(), os.Environ(), noColor)
		if err := applyTheme(s.theme); err != nil {
			return err
		}
		if !cmd.Flags().Changed("width") && term.IsTerminal(int(os.Stdout.Fd())) {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				opts.width = w
			}
		}
		return dump(cmd.Context(), out, s, opts)
	},
}

func dump(ctx context.Context, w io.Writer, s settings, opts dumpOptions) error {
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

	q := provider.Query{Sort: sort, Filter: opts.filter}
	if opts.count > 0 {
		q.Slice = &provider.SliceDetails{Start: max(opts.start, 0), Count: opts.count}
	} else if opts.start > 0 {
		q.Slice = &provider.SliceDetails{Start: opts.start, Count: len(records)}
	}
	if err := arr.Configure(q); err != nil {
		return fmt.Errorf("failed to query rows: %w", err)
	}
	rs, _ := arr.Latest()

	switch opts.output {
	case outputText, "":
		_, err = io.WriteString(w, grid.Render(columns, rs, grid.RenderOptions[record]{
			Width: opts.width,
			Field: fieldOf,
			Tree:  s.source.ChildrenField != "",
		}))
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(itemData(rs))
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(itemData(rs))
		if err == nil {
			err = enc.Close()
		}
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	if err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// dumpWriter downsamples colors to what w supports. noColor keeps text
// attributes but drops every color.
func dumpWriter(w io.Writer, environ []string, noColor bool) *colorprofile.Writer {
	out := colorprofile.NewWriter(w, environ)
	if noColor {
		out.Profile = colorprofile.Ascii
	}
	return out
}

func itemData(rs provider.ResultSet[record]) []record {
	out := make([]record, len(rs.Items))
	for i, item := range rs.Items {
		out[i] = item.Data
	}
	return out
}
