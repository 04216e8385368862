package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/expr"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/templates"
)

// printer writes command results as indented JSON or through a template.
// The CEL filter only applies to list results.
type printer struct {
	w      io.Writer
	filter *expr.Program
	tmpl   *templates.Template
	now    func() time.Time
}

func newPrinter(w io.Writer, filter, tmpl string) (*printer, error) {
	p := &printer{w: w, now: time.Now}
	if strings.TrimSpace(filter) != "" {
		env, err := expr.NewEnvironment()
		if err != nil {
			return nil, err
		}
		program, err := env.Compile(filter)
		if err != nil {
			return nil, err
		}
		p.filter = &program
	}
	compiled, err := templates.NewRenderer().Compile(tmpl)
	if err != nil {
		return nil, err
	}
	p.tmpl = compiled
	return p, nil
}

func (p *printer) list(items any) error {
	if p.filter == nil {
		return p.item(items)
	}
	kept, err := p.filter.Filter(items, p.now())
	if err != nil {
		return err
	}
	return p.item(kept)
}

func (p *printer) item(v any) error {
	if p.tmpl != nil {
		generic, err := expr.Generic(v)
		if err != nil {
			return err
		}
		rendered, err := p.tmpl.Render(generic)
		if err != nil {
			return err
		}
		if !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
		_, err = io.WriteString(p.w, rendered)
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(p.w, "%s\n", raw)
	return err
}

func (p *printer) status(status string, fields ...string) error {
	out := map[string]string{"status": status}
	for i := 0; i+1 < len(fields); i += 2 {
		out[fields[i]] = fields[i+1]
	}
	return p.item(out)
}
