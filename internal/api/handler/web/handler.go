// Package web serves the HTML backtest panel.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/render"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/runconfig"
	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

const page = "panel.html"

// Panel is the part of *panel.Panel the web handler needs.
type Panel interface {
	Snapshot() panel.State
	Edit(field, raw string) error
	SubmitAsync(ctx context.Context) (string, error)
}

// Handler renders the panel page and accepts its form.
type Handler struct {
	tmpl   *template.Template
	panel  Panel
	runCtx context.Context
	logger *zap.Logger
}

// NewHandler creates a web handler with templates loaded from the given
// directory. If templatesDir is empty, it falls back to embedded templates.
func NewHandler(templatesDir string, p Panel) (*Handler, error) {
	if templatesDir != "" {
		tmpl, err := template.ParseFiles(
			filepath.Join(templatesDir, "layout.html"),
			filepath.Join(templatesDir, page),
		)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		return newHandler(tmpl, p), nil
	}
	return NewHandlerWithFS(TemplateFS(), p)
}

// NewHandlerWithFS creates a web handler using a custom filesystem.
func NewHandlerWithFS(fsys fs.FS, p Panel) (*Handler, error) {
	tmpl, err := template.ParseFS(fsys, "layout.html", page)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s from fs: %w", page, err)
	}
	return newHandler(tmpl, p), nil
}

func newHandler(tmpl *template.Template, p Panel) *Handler {
	return &Handler{
		tmpl:   tmpl,
		panel:  p,
		runCtx: context.Background(),
		logger: zap.NewNop(),
	}
}

// SetRunContext sets the context runs started from the form inherit.
func (h *Handler) SetRunContext(ctx context.Context) {
	h.runCtx = ctx
}

// SetLogger sets the handler logger.
func (h *Handler) SetLogger(l *zap.Logger) {
	h.logger = l
}

// TemplateFS returns the embedded template filesystem for external use.
func TemplateFS() fs.FS {
	subFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return templateFS
	}
	return subFS
}

// FormField is one input of the parameters form.
type FormField struct {
	Name  string
	Label string
	Type  string
	Step  string
	Value string
}

// PageData is the template input.
type PageData struct {
	Title       string
	State       panel.State
	Fields      []FormField
	ButtonLabel string
	// ServerWeights is true when the table came from the last result.
	ServerWeights bool
	ShowSymbols   bool
	ShowChart     bool
	RefreshAfter  int
}

func newPageData(s panel.State) PageData {
	d := PageData{
		Title:         render.Title,
		State:         s,
		ButtonLabel:   render.RunLabel,
		ShowSymbols:   s.Mode.UsesSymbols(),
		ServerWeights: s.View.WeightsSource == result.SourceServer,
		ShowChart:     s.View.HasPnL && len(s.View.Series) > 0,
	}
	if s.InFlight {
		d.ButtonLabel = render.RunningLabel
		d.RefreshAfter = 2
	}

	d.Fields = []FormField{
		{Name: string(runconfig.FieldStart), Label: "Start Date:", Type: "date", Value: s.Config.Start},
		{Name: string(runconfig.FieldEnd), Label: "End Date:", Type: "date", Value: s.Config.End},
	}
	switch s.Mode {
	case request.ModeWeighted:
		d.Fields = append(d.Fields,
			FormField{Name: string(runconfig.FieldTotalNotional), Label: "Total Notional ($):", Type: "number", Step: "1000", Value: s.Config.TotalNotionalRaw},
			FormField{Name: string(runconfig.FieldVegaHedge), Label: "Vega Hedge (%):", Type: "number", Step: "0.01", Value: s.Config.VegaHedgeRaw},
		)
	case request.ModeSymbols:
		d.Fields = append(d.Fields,
			FormField{Name: string(runconfig.FieldSymbols), Label: "Symbols:", Type: "text", Value: s.Config.Symbols},
			FormField{Name: string(runconfig.FieldVegaHedge), Label: "Vega Hedge (%):", Type: "number", Step: "0.01", Value: s.Config.VegaHedgeRaw},
		)
	case request.ModeSymbolsMinimal:
		d.Fields = append(d.Fields,
			FormField{Name: string(runconfig.FieldSymbols), Label: "Symbols:", Type: "text", Value: s.Config.Symbols},
		)
	}
	return d
}

// Panel renders the panel page.
func (h *Handler) Panel(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "layout.html", newPageData(h.panel.Snapshot())); err != nil {
		h.logger.Error("rendering panel", zap.Error(err))
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// Run applies the submitted form values and starts a run, then redirects
// back to the panel. A submission while a run is in flight only applies
// the edits.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	for _, f := range runconfig.Fields {
		if !r.PostForm.Has(string(f)) {
			continue
		}
		if err := h.panel.Edit(string(f), r.PostForm.Get(string(f))); err != nil {
			h.logger.Warn("form edit rejected", zap.String("field", string(f)), zap.Error(err))
		}
	}

	if _, err := h.panel.SubmitAsync(h.runCtx); err != nil {
		if !errors.Is(err, core.ErrSubmissionInFlight) {
			h.logger.Error("starting run", zap.Error(err))
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Chart serves the PnL chart of the displayed result.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.Chart(&buf, h.panel.Snapshot().View); err != nil {
		if errors.Is(err, render.ErrNoSeries) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("rendering chart", zap.Error(err))
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}
