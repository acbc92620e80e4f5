// Package report renders human-readable summaries of timelines, grain lists
// and rendered audio with text/template.
package report

import (
	"embed"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Reporter struct {
	Template *template.Template
}

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %w`, err)
	}
	return &Reporter{Template: tmpl}, nil
}

// NewFromTemplates parses every *.tmpl file in dir. The files must define
// the templates "timeline", "grains" and "audio".
func NewFromTemplates(dir string) (*Reporter, error) {
	globPtrn := filepath.Join(dir, "*.tmpl")
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).Funcs(funcs).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create templates from directory "%v": %w`, dir, err)
	}
	return &Reporter{Template: tmpl}, nil
}

func (r *Reporter) Timeline(w io.Writer, s TimelineSummary) error { return r.execute(w, "timeline", s) }
func (r *Reporter) Grains(w io.Writer, s GrainSummary) error      { return r.execute(w, "grains", s) }
func (r *Reporter) Audio(w io.Writer, s AudioSummary) error       { return r.execute(w, "audio", s) }

func (r *Reporter) execute(w io.Writer, name string, data any) error {
	if err := r.Template.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf(`could not execute template "%v": %w`, name, err)
	}
	return nil
}

var funcs = template.FuncMap{
	"kindName": kindName,
	"dB":       decibels,
}

// kindName turns "note-on" into "Note On".
func kindName(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}

func decibels(v float32) string {
	if v <= 0 {
		return "-inf"
	}
	return fmt.Sprintf("%.1f", 20*math.Log10(float64(v)))
}
