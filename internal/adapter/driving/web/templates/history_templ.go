// Rendering of history.templ; regenerated by go generate.

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
)

// History renders one page of decided proposals with pagination links.
func History(page vm.HistoryViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		if len(page.Proposals) == 0 {
			emptyState(h, "No "+page.Status+" proposals yet.")
			return h.err
		}
		for _, p := range page.Proposals {
			proposal(h, p, "")
		}

		h.raw(`<nav class="pager">`)
		if page.PrevURL != "" {
			h.raw(`<a`)
			h.href(page.PrevURL)
			h.raw(`>Newer</a>`)
		}
		h.raw(`<span>page `)
		h.int(page.Page)
		h.raw(` (`)
		h.int(page.Total)
		h.raw(` total)</span>`)
		if page.NextURL != "" {
			h.raw(`<a`)
			h.href(page.NextURL)
			h.raw(`>Older</a>`)
		}
		h.raw(`</nav>`)
		return h.err
	})
}
