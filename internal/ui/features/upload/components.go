package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/preview"
	"github.com/leapstack-labs/leaptext/internal/ui/resources"
)

// View is everything the app shell renders.
type View struct {
	Session orchestrator.Session
	// Notice reports a request the session rejected without changing state.
	Notice string
}

// htmlw accumulates the first write error so components read linearly.
type htmlw struct {
	w   io.Writer
	err error
}

func (h *htmlw) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *htmlw) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlw) component(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// Page renders the full document. The app shell is patched in place by
// the /updates stream afterwards.
func Page(title string, isDev bool, v View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		h.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(` - leaptext</title>`,
			`<link rel="stylesheet" href="`, resources.StaticPath("app.css"), `">`,
			`<script type="module" src="`, resources.DatastarScript, `"></script>`,
			`</head><body data-init="@get('/updates')">`)
		if isDev {
			h.raw(`<div data-init="@get('/reload', {retryMaxCount: 1000, retryInterval: 20, retryMaxWaitMs: 200})"></div>`)
		}
		h.component(ctx, AppShell(v))
		h.raw(`</body></html>`)
		return h.err
	})
}

// AppShell renders #app from a session snapshot.
func AppShell(v View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s := v.Session
		h := &htmlw{w: w}

		h.raw(`<main id="app"><header class="app-header"><h1>leaptext</h1><span class="phase`)
		if s.Phase.Loading() {
			h.raw(` spinner`)
		}
		h.raw(`">`)
		h.text(s.Phase.Label())
		h.raw(`</span></header>`)

		if s.LastError != nil {
			h.raw(`<p id="error" class="error" data-kind="`, string(s.LastError.Kind), `">`)
			h.text(s.LastError.Message)
			h.raw(`</p>`)
		}
		if v.Notice != "" {
			h.raw(`<p id="notice" class="notice">`)
			h.text(v.Notice)
			h.raw(`</p>`)
		}

		h.component(ctx, singleForm(s))
		h.component(ctx, uploadForm(s))
		if s.ShowPreview() {
			h.component(ctx, previewPanel(s))
		}
		if s.ShowSelector() {
			h.component(ctx, columnSelector(s))
		}
		if s.ShowBatchResult() {
			h.component(ctx, batchResult(s))
		}

		h.raw(`</main>`)
		return h.err
	})
}

func disabled(b bool) string {
	if b {
		return ` disabled`
	}
	return ""
}

func singleForm(s orchestrator.Session) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		busy := s.Busy(orchestrator.ActionSingle)

		h.raw(`<section id="single" class="panel"><h2>Single text</h2>`,
			`<textarea rows="3" placeholder="Text to process" data-bind:text></textarea>`,
			`<div><input type="text" placeholder="Query (optional)" data-bind:query>`,
			`<input type="number" min="0" max="1" step="0.05" placeholder="Threshold" data-bind:threshold></div>`,
			`<button data-on:click="@post('/api/single')"`, disabled(busy), `>Process</button>`)
		if busy {
			h.raw(`<span class="spinner">Processing</span>`)
		}
		if s.ShowSingleResult() {
			h.raw(`<div id="single-result" class="result">`)
			h.text(s.Single.Result)
			h.raw(`</div>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

func uploadForm(s orchestrator.Session) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		busy := s.Busy(orchestrator.ActionPreview) || s.Busy(orchestrator.ActionBatch)

		h.raw(`<section id="file" class="panel"><h2>File</h2>`,
			`<form id="upload-form" enctype="multipart/form-data" data-on:change="@post('/api/file', {contentType: 'form'})">`,
			`<input type="file" name="file" accept="`, strings.Join(orchestrator.AcceptedExtensions, ","), `">`,
			`</form>`)
		if name := s.FileName(); name != "" {
			h.raw(`<p>Selected: <strong>`)
			h.text(name)
			h.raw(`</strong>`)
			if target := s.TargetColumn; target != "" {
				h.raw(`, column <code>`)
				h.text(target)
				h.raw(`</code>`)
			}
			h.raw(`</p>`)
		}
		h.raw(`<button id="batch-submit" data-on:click="@post('/api/batch')"`,
			disabled(busy || s.File == nil), `>Process file</button>`)
		if s.Phase == orchestrator.PreviewLoading || s.Phase == orchestrator.BatchLoading {
			h.raw(`<span class="spinner">`)
			h.text(s.Phase.Label())
			h.raw(`</span>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

func previewPanel(s orchestrator.Session) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		h.raw(`<section id="preview" class="panel"><h2>Preview</h2>`)
		h.raw(fmt.Sprintf(`<p>%d rows</p>`, s.Preview.Rows))
		h.raw(`<div class="badges">`)
		for _, c := range s.ColumnChoices() {
			h.raw(`<button class="badge`)
			if c.Selected {
				h.raw(` selected`)
			}
			h.raw(`" data-on:click="`, templ.EscapeString(columnAction(c.Name, false)), `">`)
			h.text(c.Name)
			h.raw(`</button>`)
		}
		h.raw(`</div><div class="preview-table">`, preview.Sanitize(s.Preview.Sample), `</div></section>`)
		return h.err
	})
}

func columnSelector(s orchestrator.Session) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		h.raw(`<section id="column-selector" class="panel"><h2>Choose the text column</h2>`)
		if s.ColumnNotice != "" {
			h.raw(`<p class="column-notice">`)
			h.text(s.ColumnNotice)
			h.raw(`</p>`)
		}
		h.raw(`<div class="badges">`)
		for _, c := range s.ColumnChoices() {
			h.raw(`<button class="badge" data-on:click="`, templ.EscapeString(columnAction(c.Name, true)), `"`,
				disabled(s.Busy(orchestrator.ActionBatch)), `>`)
			h.text(c.Name)
			h.raw(`</button>`)
		}
		h.raw(`</div></section>`)
		return h.err
	})
}

func batchResult(s orchestrator.Session) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlw{w: w}
		h.raw(`<section id="batch-result" class="panel"><h2>Result</h2>`)
		h.raw(fmt.Sprintf(`<p class="success">Processed %d rows.</p>`, s.Batch.RowsProcessed))
		if s.Batch.DownloadRef != "" {
			h.raw(`<a id="download" href="/download">Download processed file</a>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

// columnAction is the datastar expression posting a column choice.
func columnAction(name string, resolve bool) string {
	path := "/api/columns/" + url.PathEscape(name)
	if resolve {
		path += "/resolve"
	}
	return "@post('" + path + "')"
}
