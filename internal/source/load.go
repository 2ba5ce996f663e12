package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("unknown source format")
	ErrInvalidRecord = errors.New("record is not a JSON object")
	ErrNotArray      = errors.New("source does not contain an array of records")
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatJSONL  Format = "jsonl"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatYAML, FormatSQLite}
}

type Options struct {
	// Format overrides detection by file extension.
	Format Format
	// IDField names the field holding the record id.
	IDField string
	// Path selects the records array inside a JSON or YAML document.
	Path string
	// Table is the SQLite table to read.
	Table string
}

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// LoadFile reads all records of a file.
func LoadFile(ctx context.Context, path string, opts Options) ([]Record, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}
	if format == FormatSQLite {
		return LoadSQLite(ctx, path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	records, err := Load(f, format, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Debug("Loaded source", "path", path, "format", format, "records", len(records))
	return records, nil
}

// Load decodes records from a stream. SQLite needs a file and is handled by
// LoadSQLite.
func Load(r io.Reader, format Format, opts Options) ([]Record, error) {
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read source: %w", err)
		}
		return decodeJSON(data, opts)
	case FormatJSONL:
		return decodeJSONL(r, opts)
	case FormatYAML:
		return decodeYAML(r, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func decodeJSON(data []byte, opts Options) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if opts.Path != "" {
		root = root.Get(opts.Path)
	}
	if !root.IsArray() {
		return nil, ErrNotArray
	}
	elems := root.Array()
	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		rec, err := NewRecord(elem.Raw, opts.IDField)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeJSONL(r io.Reader, opts Options) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		rec, err := NewRecord(string(text), opts.IDField)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lines: %w", err)
	}
	return records, nil
}

func decodeYAML(r io.Reader, opts Options) ([]Record, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}
	var buf bytes.Buffer
	if err := writeYAMLAsJSON(&buf, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert yaml: %w", err)
	}
	return decodeJSON(buf.Bytes(), opts)
}

// writeYAMLAsJSON converts a YAML node to JSON keeping mapping key order.
func writeYAMLAsJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLAsJSON(buf, n.Content[0])
	case yaml.AliasNode:
		return writeYAMLAsJSON(buf, n.Alias)
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLAsJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLAsJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
