// Rendering of pending.templ; regenerated by go generate.

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
)

// PendingList renders the open proposals awaiting a decision, each with its
// edit, approve and reject forms.
func PendingList(proposals []vm.ProposalViewModel, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		if len(proposals) == 0 {
			emptyState(h, "Nothing is waiting for confirmation.")
			return h.err
		}
		for _, p := range proposals {
			proposal(h, p, csrfToken)
		}
		return h.err
	})
}

// proposal writes one proposal card. Forms are only rendered while it is open.
func proposal(h *html, p vm.ProposalViewModel, token string) {
	h.raw(`<article class="proposal"`)
	h.attr("id", "pending-"+itoa64(p.ID))
	h.raw(`>`)
	prHeading(h, p.Key, p.Title, p.URL, p.Author, p.ShortSHA)

	h.raw(`<p class="verdict"><span`)
	h.attr("class", "badge verdict-"+p.Verdict)
	h.raw(`>`)
	h.text(p.VerdictLabel)
	h.raw(`</span>`)
	if p.Edited {
		h.raw(` <span class="badge edited">edited</span>`)
	}
	if !p.Open {
		h.raw(` <span`)
		h.attr("class", "badge status-"+p.Status)
		h.raw(`>`)
		h.text(p.Status)
		h.raw(`</span>`)
	}
	h.raw(` <span class="meta">queued `)
	h.text(p.CreatedAt)
	if p.DecidedAt != "" {
		h.raw(`, decided `)
		h.text(p.DecidedAt)
	}
	h.raw(`</span></p>`)

	if p.CommentHTML != "" {
		h.raw(`<section class="markdown comment">`, p.CommentHTML, `</section>`)
	}
	if p.SummaryHTML != "" {
		h.raw(`<section class="markdown summary">`, p.SummaryHTML, `</section>`)
	}
	if p.RejectionReason != "" {
		h.raw(`<p class="rejection">Rejected: `)
		h.text(p.RejectionReason)
		h.raw(`</p>`)
	}

	annotations(h, p.Annotations, token)
	if p.Edited {
		original(h, p)
	}

	if p.Open {
		editForm(h, p, token)
		h.raw(`<div class="decision">`)
		postButton(h, p.ApproveURL, "Approve and post", "approve", token)
		h.raw(`<form method="post" class="inline"`)
		h.attr("action", p.RejectURL)
		h.raw(`>`)
		csrfField(h, token)
		h.raw(`<input type="text" name="reason" placeholder="Reason (optional)">`)
		h.raw(`<button type="submit" class="reject">Reject</button></form>`)
		if p.Edited {
			postButton(h, p.ResetURL, "Discard edits", "secondary", token)
		}
		h.raw(`</div>`)
	}
	h.raw(`</article>`)
}

// original writes the agent's unedited proposal next to the final version.
func original(h *html, p vm.ProposalViewModel) {
	h.raw(`<details class="original"><summary>Proposed by the agent</summary>`)
	if p.OriginalCommentHTML != "" {
		h.raw(`<section class="markdown comment">`, p.OriginalCommentHTML, `</section>`)
	}
	if p.OriginalSummaryHTML != "" {
		h.raw(`<section class="markdown summary">`, p.OriginalSummaryHTML, `</section>`)
	}
	annotations(h, p.OriginalAnnotations, "")
	h.raw(`</details>`)
}

func annotations(h *html, list []vm.AnnotationViewModel, token string) {
	if len(list) == 0 {
		return
	}
	h.raw(`<ol class="annotations">`)
	for _, a := range list {
		h.raw(`<li><code>`)
		h.text(a.File)
		h.raw(`:`)
		h.int(a.Line)
		h.raw(`</code><div class="markdown">`, a.MessageHTML, `</div>`)
		if a.DeleteURL != "" {
			postButton(h, a.DeleteURL, "Remove", "secondary small", token)
		}
		h.raw(`</li>`)
	}
	h.raw(`</ol>`)
}

func editForm(h *html, p vm.ProposalViewModel, token string) {
	h.raw(`<details class="edit"><summary>Edit proposal</summary><form method="post"`)
	h.attr("action", p.EditURL)
	h.raw(`>`)
	csrfField(h, token)
	h.raw(`<label>Comment<textarea name="comment" rows="4">`)
	h.text(p.Comment)
	h.raw(`</textarea></label>`)
	h.raw(`<label>Summary<textarea name="summary" rows="4">`)
	h.text(p.Summary)
	h.raw(`</textarea></label>`)
	h.raw(`<fieldset><legend>Add inline comment</legend>`)
	h.raw(`<input type="text" name="annotation_file" placeholder="path/to/file.go">`)
	h.raw(`<input type="number" name="annotation_line" min="1" placeholder="line">`)
	h.raw(`<textarea name="annotation_message" rows="2" placeholder="message"></textarea></fieldset>`)
	h.raw(`<button type="submit">Save edits</button></form></details>`)
}
