// Package templates holds the templ components of the review dashboard.
//
// The .templ files are the component sources. Each *_templ.go file renders the
// same markup through the templ runtime and is overwritten by go generate.
package templates

//go:generate go tool templ generate

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// html writes markup to w and remembers the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

// text writes s with HTML escaping.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr writes name="value" with the value escaped.
func (h *html) attr(name, value string) {
	h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

// href writes an href attribute, replacing unsafe URL schemes.
func (h *html) href(u string) {
	h.attr("href", string(templ.URL(u)))
}

func (h *html) int(n int) {
	h.raw(strconv.Itoa(n))
}

func (h *html) child(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
