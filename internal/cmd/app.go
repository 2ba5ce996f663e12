package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tujuhre12/dgrid/internal/config"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/source"
	"github.com/tujuhre12/dgrid/internal/tui/grid"
	"golang.org/x/text/language"
)

// inferLimit is how many records are scanned for column names when none are
// configured.
const inferLimit = 200

var errInvalidSort = errors.New("invalid sort")

type record = source.Record

// settings is the merged view of config file and flags for one data file.
type settings struct {
	path   string
	source config.SourceConfig
	grid   config.GridOptions
	theme  string
}

func (s settings) loadOptions() source.Options {
	return source.Options{
		Format:  source.Format(s.source.Format),
		IDField: s.idField(),
		Path:    s.source.Path,
		Table:   s.source.Table,
	}
}

func (s settings) idField() string {
	if s.source.IDField == "" {
		return source.DefaultIDField
	}
	return s.source.IDField
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "Source format: json, jsonl, yaml or sqlite (default from the file extension)")
	cmd.Flags().String("table", "", "SQLite table to read")
	cmd.Flags().String("path", "", "gjson path to the records inside a JSON document")
	cmd.Flags().String("id-field", "", "Field holding the record id")
	cmd.Flags().String("children", "", "Field holding nested records")
	cmd.Flags().StringSlice("sort", nil, "Sort by column, as column or column:desc; repeat to chain")
}

// resolveSettings applies flags over the per-source config.
func resolveSettings(cmd *cobra.Command, cfg *config.Config, path string) settings {
	s := settings{
		path:   path,
		source: cfg.Source(path),
		grid:   *cfg.Grid,
		theme:  cfg.Options.Theme,
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		s.source.Format, _ = flags.GetString("format")
	}
	if flags.Changed("table") {
		s.source.Table, _ = flags.GetString("table")
	}
	if flags.Changed("path") {
		s.source.Path, _ = flags.GetString("path")
	}
	if flags.Changed("id-field") {
		s.source.IDField, _ = flags.GetString("id-field")
	}
	if flags.Changed("children") {
		s.source.ChildrenField, _ = flags.GetString("children")
	}
	if flags.Changed("sort") {
		s.source.Sort, _ = flags.GetStringSlice("sort")
	}
	if f := flags.Lookup("watch"); f != nil && f.Changed {
		s.source.Watch, _ = flags.GetBool("watch")
	}
	if f := flags.Lookup("page-size"); f != nil && f.Changed {
		s.grid.PageSize, _ = flags.GetInt("page-size")
	}
	if f := flags.Lookup("buffer-rows"); f != nil && f.Changed {
		s.grid.BufferRows, _ = flags.GetInt("buffer-rows")
	}
	if f := flags.Lookup("row-drift"); f != nil && f.Changed {
		s.grid.RowDrift, _ = flags.GetInt("row-drift")
	}
	if f := flags.Lookup("theme"); f != nil && f.Changed {
		s.theme, _ = flags.GetString("theme")
	}
	return s
}

func loadRecords(ctx context.Context, s settings) ([]record, error) {
	started := time.Now()
	records, err := source.LoadFile(ctx, s.path, s.loadOptions())
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded source", "path", s.path, "records", len(records), "took", time.Since(started))
	return records, nil
}

func fieldOf(r record, name string) any {
	return r.Field(name)
}

// newProvider builds the array provider over records with the initial sort
// chain applied.
func newProvider(s settings, records []record, sort []provider.SortDetails) (*provider.Array[record], error) {
	tag, err := language.Parse(s.grid.Locale)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale %q: %w", s.grid.Locale, err)
	}
	idField := s.idField()
	opts := []provider.Option[record]{
		provider.WithIDFunc(func(r record) string { return r.ID(idField) }),
		provider.WithFieldFunc(fieldOf),
		provider.WithTextFunc(record.String),
		provider.WithLocale[record](tag),
		provider.WithQuery[record](provider.Query{Sort: sort}),
	}
	if children := s.source.ChildrenField; children != "" {
		opts = append(opts, provider.WithChildren(func(r record) []record {
			return r.Children(children, idField)
		}))
	}
	return provider.NewArray(records, opts...), nil
}

// buildColumns returns the configured columns or, without any, one column
// per top level key found in the first records.
func buildColumns(s settings, records []record) []grid.Column[record] {
	if len(s.source.Columns) > 0 {
		columns := make([]grid.Column[record], 0, len(s.source.Columns))
		for _, cc := range s.source.Columns {
			columns = append(columns, columnFromConfig(cc))
		}
		return columns
	}

	var keys []string
	for _, r := range records[:min(len(records), inferLimit)] {
		for _, k := range r.Keys() {
			if k == s.source.ChildrenField || slices.Contains(keys, k) {
				continue
			}
			keys = append(keys, k)
		}
	}
	columns := make([]grid.Column[record], len(keys))
	for i, k := range keys {
		columns[i] = grid.Column[record]{ID: k, Field: k}
	}
	return columns
}

func columnFromConfig(cc config.ColumnConfig) grid.Column[record] {
	col := grid.Column[record]{
		ID:       cc.ID,
		Label:    cc.Label,
		Field:    cc.Field,
		Width:    cc.Width,
		MaxLines: cc.MaxLines,
		Sortable: cc.Sortable,
	}
	format := formatter(cc.Format)
	if format == nil {
		return col
	}
	// A formatted column renders its value, so the field path becomes the
	// column id and sorting keeps working on the raw value.
	if cc.Field != "" {
		col.ID = cc.Field
		col.Field = ""
	}
	if col.Label == "" {
		col.Label = cc.ID
	}
	col.RenderValue = func(v any, _ provider.Item[record], _ grid.Column[record]) string {
		return format(v)
	}
	return col
}

// formatter returns the value renderer of a column format, or nil for raw
// values.
func formatter(format string) func(any) string {
	switch format {
	case config.FormatBytes:
		return func(v any) string {
			n, ok := number(v)
			if !ok || n < 0 {
				return grid.FormatValue(v)
			}
			return humanize.Bytes(uint64(n))
		}
	case config.FormatComma:
		return func(v any) string {
			n, ok := number(v)
			if !ok {
				return grid.FormatValue(v)
			}
			return humanize.Commaf(n)
		}
	case config.FormatTime:
		return func(v any) string {
			t, ok := timeOf(v)
			if !ok {
				return grid.FormatValue(v)
			}
			return humanize.Time(t)
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	}
	return 0, false
}

// timeOf reads RFC 3339 strings and unix seconds.
func timeOf(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	n, ok := number(v)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(n), 0), true
}

// parseSort turns "column" and "column:desc" specs into a sort chain. Column
// ids are mapped to the field their column sorts by.
func parseSort(specs []string, columns []grid.Column[record]) ([]provider.SortDetails, error) {
	var out []provider.SortDetails
	for _, spec := range specs {
		name, dir, _ := strings.Cut(strings.TrimSpace(spec), ":")
		if name == "" {
			return nil, fmt.Errorf("%w: empty column in %q", errInvalidSort, spec)
		}
		d := provider.SortDetails{ColumnID: name}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			d.Descending = true
		default:
			return nil, fmt.Errorf("%w: unknown direction %q", errInvalidSort, dir)
		}
		for _, col := range columns {
			if col.ID == name || col.Label == name {
				if !col.IsSortable() {
					return nil, fmt.Errorf("%w: column %s is not sortable", errInvalidSort, name)
				}
				d.ColumnID = col.SortField()
				break
			}
		}
		out = append(out, d)
	}
	return out, nil
}
