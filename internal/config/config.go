package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/sjson"
)

const (
	appName              = "dgrid"
	defaultDataDirectory = ".dgrid"
	defaultTheme         = "dark"
	defaultLocale        = "und"

	defaultBufferRows         = 10
	defaultRowDrift           = 5
	defaultEstimatedRowHeight = 1
)

// Column formats understood by the grid.
const (
	FormatRaw   = "raw"
	FormatBytes = "bytes"
	FormatComma = "comma"
	FormatTime  = "time"
)

var ErrInvalidConfig = errors.New("invalid config")

type Options struct {
	Debug bool `json:"debug,omitempty" jsonschema:"description=Enable debug logging"`
	// Relative to the working directory.
	DataDirectory string `json:"data_directory,omitempty" jsonschema:"description=Directory for logs and state,default=.dgrid"`
	Theme         string `json:"theme,omitempty" jsonschema:"description=Color theme,enum=auto,enum=dark,enum=light,enum=plain,default=dark"`
}

type GridOptions struct {
	PageSize           int    `json:"page_size,omitempty" jsonschema:"description=Rows per page; zero scrolls virtually,minimum=0"`
	BufferRows         int    `json:"buffer_rows,omitempty" jsonschema:"description=Rows loaded beyond the viewport on each side,minimum=0,default=10"`
	RowDrift           int    `json:"row_drift,omitempty" jsonschema:"description=Rows the window may drift before a new slice is requested,minimum=1,default=5"`
	EstimatedRowHeight int    `json:"estimated_row_height,omitempty" jsonschema:"description=Height in lines assumed for rows not yet measured,minimum=1,default=1"`
	Locale             string `json:"locale,omitempty" jsonschema:"description=BCP 47 tag used to compare strings when sorting,default=und"`
}

type ColumnConfig struct {
	ID       string `json:"id" jsonschema:"description=Column identifier; also the field name unless field is set"`
	Label    string `json:"label,omitempty"`
	Field    string `json:"field,omitempty" jsonschema:"description=gjson path of the value"`
	Width    int    `json:"width,omitempty" jsonschema:"minimum=0"`
	MaxLines int    `json:"max_lines,omitempty" jsonschema:"minimum=0"`
	Sortable *bool  `json:"sortable,omitempty"`
	Format   string `json:"format,omitempty" jsonschema:"enum=raw,enum=bytes,enum=comma,enum=time"`
}

// SourceConfig holds the settings of one data file, keyed by its base name.
type SourceConfig struct {
	Format        string         `json:"format,omitempty" jsonschema:"enum=json,enum=jsonl,enum=yaml,enum=sqlite"`
	Table         string         `json:"table,omitempty" jsonschema:"description=SQLite table to read"`
	Path          string         `json:"path,omitempty" jsonschema:"description=gjson path to the array inside a JSON document"`
	IDField       string         `json:"id_field,omitempty" jsonschema:"default=id"`
	ChildrenField string         `json:"children_field,omitempty" jsonschema:"description=Field holding nested records"`
	Columns       []ColumnConfig `json:"columns,omitempty"`
	Sort          []string       `json:"sort,omitempty" jsonschema:"description=Initial sort chain as column or column:desc"`
	Watch         bool           `json:"watch,omitempty" jsonschema:"description=Reload when the file changes"`
}

// Config holds the configuration for dgrid.
type Config struct {
	Options *Options                `json:"options,omitempty"`
	Grid    *GridOptions            `json:"grid,omitempty"`
	Sources map[string]SourceConfig `json:"sources,omitempty"`

	workingDir    string `json:"-"`
	dataConfigDir string `json:"-"`
}

func (c *Config) WorkingDir() string {
	return c.workingDir
}

// Source returns the settings for a data file. Files without an entry get
// the zero value.
func (c *Config) Source(path string) SourceConfig {
	if c.Sources == nil {
		return SourceConfig{}
	}
	if s, ok := c.Sources[path]; ok {
		return s
	}
	return c.Sources[filepath.Base(path)]
}

// SourceNames lists the configured sources in order.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LogFile is where the TUI writes its logs.
func (c *Config) LogFile() string {
	return filepath.Join(c.Options.DataDirectory, "logs", appName+".log")
}

func (c *Config) SetTheme(name string) error {
	c.Options.Theme = name
	return c.SetConfigField("options.theme", name)
}

// SetConfigField writes a single value into the data config file, creating
// it when needed.
func (c *Config) SetConfigField(key string, value any) error {
	data, err := os.ReadFile(c.dataConfigDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		data = []byte("{}")
	}

	newValue, err := sjson.Set(string(data), key, value)
	if err != nil {
		return fmt.Errorf("failed to set config field %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.dataConfigDir), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.dataConfigDir, []byte(newValue), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseValue interprets a command line value as JSON, falling back to a
// plain string.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func (c *Config) setDefaults(workingDir string) {
	c.workingDir = workingDir
	if c.Options == nil {
		c.Options = &Options{}
	}
	if c.Options.DataDirectory == "" {
		c.Options.DataDirectory = filepath.Join(workingDir, defaultDataDirectory)
	} else if !filepath.IsAbs(c.Options.DataDirectory) {
		c.Options.DataDirectory = filepath.Join(workingDir, c.Options.DataDirectory)
	}
	if c.Options.Theme == "" {
		c.Options.Theme = defaultTheme
	}

	if c.Grid == nil {
		c.Grid = &GridOptions{}
	}
	if c.Grid.BufferRows == 0 {
		c.Grid.BufferRows = defaultBufferRows
	}
	if c.Grid.RowDrift == 0 {
		c.Grid.RowDrift = defaultRowDrift
	}
	if c.Grid.EstimatedRowHeight == 0 {
		c.Grid.EstimatedRowHeight = defaultEstimatedRowHeight
	}
	if c.Grid.Locale == "" {
		c.Grid.Locale = defaultLocale
	}

	if c.Sources == nil {
		c.Sources = make(map[string]SourceConfig)
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Grid.PageSize < 0 {
		errs = append(errs, fmt.Errorf("grid.page_size must not be negative: %d", c.Grid.PageSize))
	}
	if c.Grid.BufferRows < 0 {
		errs = append(errs, fmt.Errorf("grid.buffer_rows must not be negative: %d", c.Grid.BufferRows))
	}
	if c.Grid.RowDrift < 0 {
		errs = append(errs, fmt.Errorf("grid.row_drift must not be negative: %d", c.Grid.RowDrift))
	}
	if c.Grid.EstimatedRowHeight < 0 {
		errs = append(errs, fmt.Errorf("grid.estimated_row_height must not be negative: %d", c.Grid.EstimatedRowHeight))
	}
	for _, name := range c.SourceNames() {
		for i, col := range c.Sources[name].Columns {
			if strings.TrimSpace(col.ID) == "" {
				errs = append(errs, fmt.Errorf("sources.%s.columns.%d: missing id", name, i))
			}
			switch col.Format {
			case "", FormatRaw, FormatBytes, FormatComma, FormatTime:
			default:
				errs = append(errs, fmt.Errorf("sources.%s.columns.%d: unknown format %q", name, i, col.Format))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
