package views

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/a-h/templ"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
)

// esc escapes s for HTML text and attribute values.
func esc(s string) string { return templ.EscapeString(s) }

// printer accumulates the first write error so markup can be emitted
// without checking every call.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) s(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

// PathEscape wraps url.PathEscape for use in templates.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	base := "inline-flex items-center rounded border border-ink bg-stone-100 px-2.5 py-1 text-[11px] font-semibold uppercase tracking-[0.12em] hover:-translate-y-0.5 transition"
	if active {
		base += " bg-ink text-white"
	}
	return base
}

// FormatDate renders t the way post lists show dates. The zero time is
// rendered as an empty string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// StateLabel is the badge text for a blog state.
func StateLabel(b devtoolkit.Blog) string {
	if b.Published() {
		return "Published"
	}
	return "Draft"
}
