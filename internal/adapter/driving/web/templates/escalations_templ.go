// Rendering of escalations.templ; regenerated by go generate.

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
)

// EscalationList renders pull requests removed from automated review, each
// with a form that returns it to the queue.
func EscalationList(escalations []vm.EscalationViewModel, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		if len(escalations) == 0 {
			emptyState(h, "No pull requests are escalated.")
			return h.err
		}
		for _, e := range escalations {
			h.raw(`<article class="escalation">`)
			prHeading(h, e.Key, e.Title, e.URL, e.Author, e.ShortSHA)
			h.raw(`<p class="reason">`)
			h.text(e.Reason)
			h.raw(`</p><p class="meta">escalated `)
			h.text(e.CreatedAt)
			h.raw(`</p>`)
			postButton(h, e.ClearURL, "Return to automated review", "secondary", csrfToken)
			h.raw(`</article>`)
		}
		return h.err
	})
}
