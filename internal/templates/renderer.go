package templates

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"
)

// Renderer compiles output templates for command results. Sprig helpers are
// available except the ones that read the process environment or filesystem.
type Renderer struct {
	funcs template.FuncMap
}

// Template is a compiled template ready for execution. Templates are safe
// for concurrent use.
type Template struct {
	name string
	tmpl *template.Template
}

var restricted = []string{
	"env",
	"expandenv",
	"readDir",
	"mustReadDir",
	"readFile",
	"mustReadFile",
	"glob",
}

// NewRenderer builds a renderer with the sprig text function map.
func NewRenderer() *Renderer {
	funcs := sprig.TxtFuncMap()
	for _, name := range restricted {
		delete(funcs, name)
	}
	return &Renderer{funcs: funcs}
}

// Compile parses a template given inline or, when source starts with @, read
// from the named file. Empty sources return nil without error.
func (r *Renderer) Compile(source string) (*Template, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(trimmed, "@"); ok {
		return r.CompileFile(path)
	}
	return r.CompileInline("inline", source)
}

// CompileInline parses an inline template source.
func (r *Renderer) CompileInline(name, source string) (*Template, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	if name == "" {
		name = "inline"
	}
	tmpl, err := template.New(name).Funcs(r.funcs).Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("templates: compile %q: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// CompileFile reads and parses a template file.
func (r *Renderer) CompileFile(path string) (*Template, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("templates: file path required")
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %q: %w", path, err)
	}
	return r.CompileInline(filepath.Base(path), string(contents))
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	if t == nil {
		return "", errors.New("templates: nil template")
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %q: %w", t.name, err)
	}
	return buf.String(), nil
}

// Name exposes the logical template name for logs.
func (t *Template) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}
