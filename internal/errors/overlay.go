package errors

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// OverlayPage returns a component rendering a standalone HTML page listing
// diagnostics. Watch mode writes it in place of a failed file's output.
func OverlayPage(title string, diagnostics []Diagnostic) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>"+
			templ.EscapeString(title)+"</title></head><body style=\"margin:0\">"); err != nil {
			return err
		}
		if err := overlayPanel(title, diagnostics).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func overlayPanel(title string, diagnostics []Diagnostic) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div id="chtl-error-overlay" style="`+
			`position:fixed;inset:0;background:rgba(0,0,0,0.85);color:#fff;`+
			`font-family:Menlo,monospace;font-size:14px;padding:20px;overflow:auto">`+
			`<h2 style="color:#ff6b6b;margin-top:0">`+templ.EscapeString(title)+`</h2>`); err != nil {
			return err
		}
		for _, d := range diagnostics {
			if err := diagnosticCard(d).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</div>")
		return err
	})
}

func diagnosticCard(d Diagnostic) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		color := "#ff6b6b"
		switch d.Severity {
		case ErrorSeverityWarning:
			color = "#feca57"
		case ErrorSeverityInfo:
			color = "#48dbfb"
		}

		var b bytes.Buffer
		fmt.Fprintf(&b, `<div style="background:#2d3748;padding:15px;margin-bottom:15px;border-left:4px solid %s">`, color)
		fmt.Fprintf(&b, `<div style="color:%s;font-weight:bold">%s</div>`, color, templ.EscapeString(d.Severity.String()))
		fmt.Fprintf(&b, `<div style="margin:6px 0"><strong>%s</strong></div>`, templ.EscapeString(d.Message))
		fmt.Fprintf(&b, `<div style="color:#a0aec0;font-size:12px">%s:%d:%d</div>`, templ.EscapeString(d.File), d.Line, d.Column)
		if d.Suggestion != "" {
			fmt.Fprintf(&b, `<div style="color:#9ae6b4;font-size:12px">hint: %s</div>`, templ.EscapeString(d.Suggestion))
		}
		b.WriteString("</div>")

		_, err := w.Write(b.Bytes())
		return err
	})
}

// Overlay renders the collector's diagnostics as a full HTML page. It
// returns the empty string when nothing was collected.
func (ec *ErrorCollector) Overlay(ctx context.Context, title string) (string, error) {
	diagnostics := ec.Diagnostics()
	if len(diagnostics) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := OverlayPage(title, diagnostics).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("rendering error overlay: %w", err)
	}
	return buf.String(), nil
}
