// Package schema reads workflow schema documents from YAML or JSON.
package schema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

const loaderComponent = "schema_loader"

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the decoder from a file extension. Anything that is not
// .json is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Parse decodes one schema document.
func Parse(data []byte, format Format) (*domain.WorkflowSchema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, loadError("schema document is empty", nil)
	}

	var schema domain.WorkflowSchema
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, loadError("decode json schema", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, loadError("decode yaml schema", err)
		}
	default:
		return nil, loadError(fmt.Sprintf("unsupported schema format %q", format), nil)
	}

	if schema.ID == "" {
		return nil, loadError("schema id is required", nil)
	}
	normalize(&schema)
	return &schema, nil
}

// LoadFile reads and parses a schema file.
func LoadFile(path string) (*domain.WorkflowSchema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, loadError(fmt.Sprintf("stat %s", path), err)
	}
	if info.IsDir() {
		return nil, loadError(fmt.Sprintf("%s is a directory", path), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(fmt.Sprintf("read %s", path), err)
	}

	schema, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("%s: %v", path, err), err,
			domain.WithComponent(loaderComponent), domain.WithDetail("path", filepath.Clean(path)))
	}
	return schema, nil
}

// LoadDir parses every schema file directly under dir, ordered by file name.
// A missing directory yields no schemas.
func LoadDir(dir string) ([]*domain.WorkflowSchema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, loadError(fmt.Sprintf("read %s", dir), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && isSchemaFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	schemas := make([]*domain.WorkflowSchema, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		schema, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[schema.ID]; dup {
			return nil, loadError(fmt.Sprintf("schema %s is declared in both %s and %s", schema.ID, prev, name), nil)
		}
		seen[schema.ID] = name
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// Install saves schemas into the store in order, stopping at the first error.
func Install(ctx context.Context, store ports.SchemaStore, schemas ...*domain.WorkflowSchema) error {
	for _, schema := range schemas {
		if err := store.SaveSchema(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

func loadError(message string, cause error) error {
	if cause != nil {
		message = message + ": " + cause.Error()
	}
	return domain.NewValidationError(message, cause,
		domain.WithComponent(loaderComponent), domain.WithOperation("load"))
}

// normalize fills defaults and rewrites nested property maps into the
// string-keyed form the activities read.
func normalize(schema *domain.WorkflowSchema) {
	for i := range schema.Transitions {
		t := &schema.Transitions[i]
		if t.Type == "" {
			t.Type = domain.TransitionTypeNormal
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("%s->%s", t.From, t.To)
		}
	}
	for i := range schema.Activities {
		a := &schema.Activities[i]
		if a.Name == "" {
			a.Name = a.ID
		}
		for k, v := range a.Properties {
			a.Properties[k] = stringKeys(v)
		}
	}
	for i := range schema.Variables {
		schema.Variables[i].Default = stringKeys(schema.Variables[i].Default)
	}
}

func stringKeys(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case map[string]interface{}:
		for k, item := range v {
			v[k] = stringKeys(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = stringKeys(item)
		}
		return v
	default:
		return value
	}
}
