package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Reply is one scripted backend response.
type Reply struct {
	Status int    // HTTP status, defaults to 200
	Body   any    // JSON-encoded unless Raw is set
	Raw    string // sent verbatim when non-empty
	Delay  time.Duration
	// Wait blocks the reply until the channel is closed or the request is cancelled.
	Wait <-chan struct{}
}

// RecordedRequest is a request the fake backend received.
type RecordedRequest struct {
	Path        string
	Fields      map[string]string
	FileName    string
	FileContent []byte
	Header      http.Header
}

// FakeBackend is a scripted stand-in for the text-processing backend.
// Replies are consumed in order per endpoint; the last one repeats.
type FakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string][]Reply
	requests []RecordedRequest
	files    map[string]string
	done     chan struct{}
}

// NewFakeBackend starts a fake backend that is shut down with the test.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		replies: make(map[string][]Reply),
		files:   make(map[string]string),
		done:    make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Post("/process", f.handle("/process"))
	r.Post("/preview", f.handle("/preview"))
	r.Post("/batch", f.handle("/batch"))
	r.Get("/*", f.serveFile)

	f.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		close(f.done)
		f.Close()
	})
	return f
}

// OnProcess scripts replies for POST /process.
func (f *FakeBackend) OnProcess(replies ...Reply) { f.script("/process", replies) }

// OnPreview scripts replies for POST /preview.
func (f *FakeBackend) OnPreview(replies ...Reply) { f.script("/preview", replies) }

// OnBatch scripts replies for POST /batch.
func (f *FakeBackend) OnBatch(replies ...Reply) { f.script("/batch", replies) }

// ServeFile makes content downloadable at path.
func (f *FakeBackend) ServeFile(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

// Requests returns every recorded request.
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns the recorded requests for one path.
func (f *FakeBackend) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, req := range f.Requests() {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (f *FakeBackend) script(path string, replies []Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = append(f.replies[path], replies...)
}

func (f *FakeBackend) next(path string) (Reply, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.replies[path]
	if len(queue) == 0 {
		return Reply{}, false
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.replies[path] = queue[1:]
	}
	return reply, true
}

func (f *FakeBackend) handle(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{Path: path, Fields: map[string]string{}, Header: r.Header.Clone()}
		if err := r.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for key, values := range r.Form {
			if len(values) > 0 {
				rec.Fields[key] = values[0]
			}
		}
		if r.MultipartForm != nil {
			if file, header, err := r.FormFile("file"); err == nil {
				rec.FileName = header.Filename
				rec.FileContent, _ = io.ReadAll(file)
				_ = file.Close()
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		reply, ok := f.next(path)
		if !ok {
			http.Error(w, "no scripted reply", http.StatusInternalServerError)
			return
		}

		if reply.Wait != nil {
			select {
			case <-reply.Wait:
			case <-r.Context().Done():
				return
			case <-f.done:
				return
			}
		}
		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-r.Context().Done():
				return
			case <-f.done:
				return
			}
		}

		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		if reply.Raw != "" {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply.Raw)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply.Body)
	}
}

func (f *FakeBackend) serveFile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	content, ok := f.files[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = io.WriteString(w, content)
}

// ProcessOK is a successful /process reply.
func ProcessOK(result string) Reply {
	return Reply{Body: map[string]any{"status": "success", "result": result}}
}

// PreviewOK is a successful /preview reply listing columns.
func PreviewOK(rows int, columns ...string) Reply {
	return Reply{Body: map[string]any{
		"status":     "success",
		"preview":    SampleTable(columns),
		"rows_count": rows,
		"columns":    columns,
	}}
}

// BatchOK is a successful /batch reply.
func BatchOK(rows int, downloadURL string) Reply {
	return Reply{Body: map[string]any{
		"status":         "success",
		"rows_processed": rows,
		"download_url":   downloadURL,
	}}
}

// ColumnMissing is the legacy /batch column-mismatch reply, detected by message.
func ColumnMissing(message string, columns ...string) Reply {
	return Reply{Body: map[string]any{
		"status":  "error",
		"message": message,
		"columns": columns,
	}}
}

// ColumnMissingKind is the structured /batch column-mismatch reply.
func ColumnMissingKind(columns ...string) Reply {
	return Reply{Body: map[string]any{
		"status":     "error",
		"message":    "column missing",
		"error_kind": "column_not_found",
		"columns":    columns,
	}}
}

// Failure is an error envelope reply.
func Failure(message string) Reply {
	return Reply{Body: map[string]any{"status": "error", "message": message}}
}

// SampleTable renders a one-row HTML table like the backend's preview fragment.
func SampleTable(columns []string) string {
	html := `<table class="table"><thead><tr>`
	for _, c := range columns {
		html += "<th>" + c + "</th>"
	}
	html += "</tr></thead><tbody><tr>"
	for _, c := range columns {
		html += "<td>" + c + "-1</td>"
	}
	html += "</tr></tbody></table>"
	return html
}
