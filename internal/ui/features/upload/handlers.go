package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/ui/registry"
	"github.com/starfederation/datastar-go/datastar"
)

// Downloader fetches a processed file from the backend.
type Downloader interface {
	Download(ctx context.Context, ref string, w io.Writer) (int64, error)
}

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// Handlers provides HTTP handlers for the upload feature.
type Handlers struct {
	registry   *registry.Registry
	downloader Downloader
	maxUpload  int64
	isDev      bool
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance. maxFileSize <= 0 uses the
// orchestrator default.
func NewHandlers(reg *registry.Registry, dl Downloader, maxFileSize int, isDev bool, logger *slog.Logger) *Handlers {
	if maxFileSize <= 0 {
		maxFileSize = orchestrator.DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		registry:   reg,
		downloader: dl,
		maxUpload:  int64(maxFileSize),
		isDev:      isDev,
		logger:     logger,
	}
}

// HandlePage renders the page with the current session state.
func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := Page("Upload", h.isDev, View{Session: o.Snapshot()}).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleUpdates is the long-lived SSE endpoint. It does not send the
// initial state, which HandlePage already rendered.
func (h *Handlers) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updates := o.Subscribe()
	defer o.Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				// Session expired; the next request starts a new one.
				return
			}
			if err := sse.PatchElementTempl(AppShell(View{Session: o.Snapshot()})); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

type singleSignals struct {
	Text      string    `json:"text"`
	Query     string    `json:"query"`
	Threshold flexFloat `json:"threshold"`
}

// flexFloat accepts a JSON number, a numeric string or an empty string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	*f = flexFloat(v)
	return nil
}

// HandleSingle submits the text signal for processing.
func (h *Handlers) HandleSingle(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var signals singleSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.respond(w, r, o, "could not read the form: "+err.Error())
		return
	}
	if strings.TrimSpace(signals.Text) == "" {
		h.respond(w, r, o, "enter some text first")
		return
	}
	if signals.Threshold < 0 || signals.Threshold > 1 {
		h.respond(w, r, o, "threshold must be between 0 and 1")
		return
	}

	err = o.SubmitSingleRequest(detach(r), backend.SingleRequest{
		Text:      signals.Text,
		Query:     signals.Query,
		Threshold: float64(signals.Threshold),
	})
	h.respond(w, r, o, notice(err))
}

// HandleFile accepts a multipart upload and requests its preview.
func (h *Handlers) HandleFile(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	file, err := h.readFile(w, r)
	if err != nil {
		h.respond(w, r, o, err.Error())
		return
	}

	err = o.SelectFile(detach(r), file)
	h.respond(w, r, o, notice(err))
}

func (h *Handlers) readFile(w http.ResponseWriter, r *http.Request) (backend.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return backend.File{}, fmt.Errorf("file is larger than the %d byte limit", h.maxUpload)
		}
		return backend.File{}, fmt.Errorf("could not read the upload: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile("file")
	if err != nil {
		return backend.File{}, fmt.Errorf("choose a file first")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return backend.File{}, fmt.Errorf("could not read the upload: %w", err)
	}
	return backend.File{Name: filepath.Base(header.Filename), Content: content}, nil
}

// HandleChooseColumn sets the target column without submitting.
func (h *Handlers) HandleChooseColumn(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	o.ChooseColumn(columnParam(r))
	h.respond(w, r, o, "")
}

// HandleResolveColumn sets the target column and resubmits the batch.
func (h *Handlers) HandleResolveColumn(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	err = o.ResolveColumn(detach(r), columnParam(r))
	h.respond(w, r, o, notice(err))
}

// HandleBatch processes the selected file.
func (h *Handlers) HandleBatch(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	err = o.SubmitBatch(detach(r))
	h.respond(w, r, o, notice(err))
}

// HandleReset clears the session.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	_, o, err := h.registry.Acquire(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	o.Reset()
	h.respond(w, r, o, "")
}

// HandleDownload streams the last batch's processed file through the server.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	o, ok := h.registry.Lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s := o.Snapshot()
	ref := s.Batch.DownloadRef
	if ref == "" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(ref, s.FileName())))

	n, err := h.downloader.Download(r.Context(), ref, w)
	if err != nil {
		h.logger.Error("download failed", "ref", ref, "error", err)
		if n == 0 {
			w.Header().Del("Content-Disposition")
			http.Error(w, "download failed: "+err.Error(), http.StatusBadGateway)
		}
	}
}

// respond patches the app shell into the page.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, o *orchestrator.Orchestrator, msg string) {
	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(AppShell(View{Session: o.Snapshot(), Notice: msg})); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// notice maps errors the session does not record itself to a message.
func notice(err error) string {
	switch {
	case err == nil, errors.Is(err, orchestrator.ErrSuperseded):
		return ""
	case errors.Is(err, orchestrator.ErrInFlight):
		return "a request of this kind is already running"
	case errors.Is(err, orchestrator.ErrNoFile):
		return "choose a file first"
	default:
		// Recorded as the session's LastError.
		return ""
	}
}

// detach keeps backend calls running when the browser navigates away.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func columnParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func downloadName(ref, uploadName string) string {
	if u, err := url.Parse(ref); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != ".." && base != "/" {
			return base
		}
	}
	return strings.TrimSuffix(uploadName, filepath.Ext(uploadName)) + "_processed.csv"
}

var _ json.Unmarshaler = (*flexFloat)(nil)
