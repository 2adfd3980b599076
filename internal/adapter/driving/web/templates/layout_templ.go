// Rendering of layout.templ; regenerated by go generate.

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
)

// Layout wraps body in the full HTML document with the stats header and tab bar.
func Layout(page vm.PageViewModel, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}

		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(page.Title)
		h.raw(`</title><link rel="stylesheet" href="/static/app.css"></head><body>`)

		h.raw(`<header class="topbar"><h1>reviewgate</h1>`)
		stats(h, page.Stats)
		h.raw(`</header>`)

		h.raw(`<nav class="tabs">`)
		for _, t := range page.Tabs {
			h.raw(`<a`)
			h.href(t.Path)
			if t.Active {
				h.raw(` class="tab active" aria-current="page"`)
			} else {
				h.raw(` class="tab"`)
			}
			h.raw(`>`)
			h.text(t.Label)
			h.raw(` <span class="count">`)
			h.int(t.Count)
			h.raw(`</span></a>`)
		}
		h.raw(`</nav>`)

		if page.Flash != "" {
			h.raw(`<div class="flash" role="status">`)
			h.text(page.Flash)
			h.raw(`</div>`)
		}

		h.raw(`<main>`)
		h.child(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

func stats(h *html, s vm.StatsViewModel) {
	h.raw(`<dl class="stats"><div><dt>Reviews</dt><dd>`)
	h.int(s.TotalReviews)
	h.raw(`</dd></div><div><dt>Last 7 days</dt><dd>`)
	h.int(s.RecentReviews)
	h.raw(`</dd></div><div><dt>Repositories</dt><dd>`)
	h.int(s.Repositories)
	h.raw(`</dd></div>`)
	for _, v := range s.Verdicts {
		h.raw(`<div><dt>`)
		h.text(v.Label)
		h.raw(`</dt><dd>`)
		h.int(v.Count)
		h.raw(`</dd></div>`)
	}
	h.raw(`</dl>`)
}

// csrfField writes the hidden double-submit token input.
func csrfField(h *html, token string) {
	h.raw(`<input type="hidden" name="csrf_token"`)
	h.attr("value", token)
	h.raw(`>`)
}

// postButton writes a single-button form that POSTs to action.
func postButton(h *html, action, label, class, token string) {
	h.raw(`<form method="post" class="inline"`)
	h.attr("action", action)
	h.raw(`>`)
	csrfField(h, token)
	h.raw(`<button type="submit"`)
	h.attr("class", class)
	h.raw(`>`)
	h.text(label)
	h.raw(`</button></form>`)
}

func emptyState(h *html, msg string) {
	h.raw(`<p class="empty">`)
	h.text(msg)
	h.raw(`</p>`)
}

// prHeading writes the repository, number and linked title of a pull request.
func prHeading(h *html, key, title, url, author, shortSHA string) {
	h.raw(`<div class="pr-heading"><a class="pr-title" target="_blank" rel="noopener"`)
	h.href(url)
	h.raw(`>`)
	h.text(key)
	h.raw(` `)
	h.text(title)
	h.raw(`</a><span class="meta">by `)
	h.text(author)
	h.raw(` at <code>`)
	h.text(shortSHA)
	h.raw(`</code></span></div>`)
}
