package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/tujuhre12/dgrid/internal/config"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/source"
	"github.com/tujuhre12/dgrid/internal/tui/grid"
)

func mustRecords(t *testing.T, raws ...string) []record {
	t.Helper()
	out := make([]record, len(raws))
	for i, raw := range raws {
		r, err := source.NewRecord(raw, "id")
		require.NoError(t, err)
		out[i] = r
	}
	return out
}

func TestBuildColumnsInfersKeys(t *testing.T) {
	t.Parallel()

	records := mustRecords(t,
		`{"id":"a","name":"alpha","children":[]}`,
		`{"id":"b","size":3,"name":"beta"}`,
	)
	s := settings{source: config.SourceConfig{ChildrenField: "children"}}
	columns := buildColumns(s, records)

	ids := make([]string, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
		require.Equal(t, c.ID, c.Field)
	}
	require.Equal(t, []string{"id", "name", "size"}, ids)
}

func TestColumnFromConfig(t *testing.T) {
	t.Parallel()

	no := false
	col := columnFromConfig(config.ColumnConfig{ID: "owner", Field: "meta.owner", Width: 8, Sortable: &no})
	require.Equal(t, "owner", col.ID)
	require.Equal(t, "meta.owner", col.Field)
	require.Equal(t, 8, col.Width)
	require.False(t, col.IsSortable())
	require.Nil(t, col.RenderValue)

	col = columnFromConfig(config.ColumnConfig{ID: "size", Field: "meta.size", Format: config.FormatBytes})
	require.Equal(t, "meta.size", col.ID)
	require.Empty(t, col.Field)
	require.Equal(t, "size", col.Title())
	require.Equal(t, "meta.size", col.SortField())

	item := provider.Item[record]{Data: mustRecords(t, `{"id":"x","meta":{"size":2048}}`)[0]}
	require.Equal(t, "2.0 kB", col.Content(item, fieldOf))
}

func TestFormatter(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-72 * time.Hour)
	tests := []struct {
		format string
		in     any
		want   string
	}{
		{config.FormatBytes, float64(1536), "1.5 kB"},
		{config.FormatBytes, "10", "10 B"},
		{config.FormatBytes, "n/a", "n/a"},
		{config.FormatComma, float64(1234567), "1,234,567"},
		{config.FormatComma, true, "true"},
		{config.FormatTime, past.Format(time.RFC3339), "3 days ago"},
		{config.FormatTime, float64(past.Unix()), "3 days ago"},
		{config.FormatTime, "yesterday-ish", "yesterday-ish"},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+grid.FormatValue(tt.in), func(t *testing.T) {
			t.Parallel()
			fn := formatter(tt.format)
			require.NotNil(t, fn)
			require.Equal(t, tt.want, fn(tt.in))
		})
	}
	require.Nil(t, formatter(config.FormatRaw))
	require.Nil(t, formatter(""))
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	no := false
	columns := []grid.Column[record]{
		{ID: "name"},
		{ID: "owner", Field: "meta.owner"},
		{ID: "notes", Sortable: &no},
	}

	got, err := parseSort([]string{"name", "owner:desc", "other:ASC"}, columns)
	require.NoError(t, err)
	require.Equal(t, []provider.SortDetails{
		{ColumnID: "name"},
		{ColumnID: "meta.owner", Descending: true},
		{ColumnID: "other"},
	}, got)

	for _, spec := range []string{":desc", "name:sideways", "notes"} {
		_, err := parseSort([]string{spec}, columns)
		require.ErrorIs(t, err, errInvalidSort, spec)
	}
}

func TestResolveSettings(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test"}
	addSourceFlags(cmd)
	cmd.Flags().Int("page-size", 0, "")
	require.NoError(t, cmd.ParseFlags([]string{"--sort", "size:desc", "--page-size", "25", "--id-field", "key"}))

	cfg := &config.Config{
		Options: &config.Options{Theme: "light"},
		Grid:    &config.GridOptions{PageSize: 10, BufferRows: 7, Locale: "und"},
		Sources: map[string]config.SourceConfig{
			"data.json": {IDField: "uid", Table: "t", Sort: []string{"name"}},
		},
	}
	s := resolveSettings(cmd, cfg, filepath.Join("dir", "data.json"))
	require.Equal(t, "key", s.source.IDField)
	require.Equal(t, "t", s.source.Table)
	require.Equal(t, []string{"size:desc"}, s.source.Sort)
	require.Equal(t, 25, s.grid.PageSize)
	require.Equal(t, 7, s.grid.BufferRows)
	require.Equal(t, "light", s.theme)
	require.Equal(t, "key", s.loadOptions().IDField)
	require.Equal(t, 10, cfg.Grid.PageSize, "config must not be modified")
}

func TestNewProviderTree(t *testing.T) {
	t.Parallel()

	records := mustRecords(t,
		`{"id":"b","items":[{"id":"b2"},{"id":"b1"}]}`,
		`{"id":"a"}`,
	)
	s := settings{
		source: config.SourceConfig{ChildrenField: "items"},
		grid:   config.GridOptions{Locale: "en"},
	}
	arr, err := newProvider(s, records, []provider.SortDetails{{ColumnID: "id"}})
	require.NoError(t, err)
	require.NoError(t, arr.ToggleExpanded("b"))

	rs, ok := arr.Latest()
	require.True(t, ok)
	ids := make([]string, len(rs.Items))
	for i, item := range rs.Items {
		ids[i] = item.ID
	}
	require.Equal(t, []string{"a", "b", "b1", "b2"}, ids)

	_, err = newProvider(settings{grid: config.GridOptions{Locale: "not a locale!"}}, records, nil)
	require.Error(t, err)
}

func TestConfigSchema(t *testing.T) {
	t.Parallel()

	bts, err := configSchema()
	require.NoError(t, err)
	schema := string(bts)
	require.Contains(t, schema, `"buffer_rows"`)
	require.Contains(t, schema, `"sources"`)
	require.Contains(t, schema, `"bytes"`)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
