package httpserver

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/shirou/gopsutil/disk"

	"lanshare/internal/errs"
	"lanshare/internal/store"
)

const msgNoFile = "No file selected for upload."

// Files is the part of the store the handlers need.
type Files interface {
	Root() string
	List(ctx context.Context) ([]string, error)
	Search(ctx context.Context, q string) ([]string, error)
	Stage(ctx context.Context, rawName string, r io.Reader) (*store.Staged, error)
	Commit(st *store.Staged) error
	Discard(st *store.Staged)
	Open(ctx context.Context, rawName string) (*store.Object, error)
	Delete(ctx context.Context, rawName string) error
}

type Options struct {
	Files          Files
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	files     Files
	maxUpload int64
	log       *slog.Logger

	webFS fs.FS
}

//go:embed web/index.html
var embeddedWeb embed.FS

func New(opts Options) (*Server, error) {
	if opts.Files == nil {
		return nil, errors.New("httpserver: missing file store")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = store.DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sub, err := fs.Sub(embeddedWeb, "web")
	if err != nil {
		return nil, err
	}
	return &Server{
		files:     opts.Files,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
		webFS:     sub,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// UI and upload share the root, like the form action
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleUpload)

	mux.HandleFunc("GET /files_json", s.handleList)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /download/{name...}", s.handleDownload)
	mux.HandleFunc("POST /delete/{name...}", s.handleDelete)
	mux.HandleFunc("GET /thumb/{name...}", s.handleThumb)

	return withHeaders(mux)
}

// --- handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(s.webFS, "index.html")
	if err != nil {
		http.Error(w, "missing ui", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.files.List(r.Context())
	if err != nil {
		s.log.Error("Listing files failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not retrieve files"})
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	names, err := s.files.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error("Searching files failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not retrieve files"})
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// handleUpload streams every file part into staging first and only commits
// once the whole request has been read, so a rejected request changes
// nothing in the storage root.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		s.tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mr, err := r.MultipartReader()
	if err != nil {
		redirectWithError(w, r, msgNoFile)
		return
	}

	var staged []*store.Staged
	defer func() {
		for _, st := range staged {
			s.files.Discard(st)
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.uploadFailed(w, r, "", err)
			return
		}
		if !isFilePart(part) {
			_ = part.Close()
			continue
		}
		raw := part.FileName()
		st, err := s.files.Stage(r.Context(), raw, part)
		_ = part.Close()
		if err != nil {
			s.uploadFailed(w, r, raw, err)
			return
		}
		staged = append(staged, st)
	}

	if len(staged) == 0 {
		s.log.Warn("Upload without any file part")
		redirectWithError(w, r, msgNoFile)
		return
	}
	// a rename cannot be undone, so files committed before a failure stay
	committed := make([]string, 0, len(staged))
	for _, st := range staged {
		if err := s.files.Commit(st); err != nil {
			if len(committed) > 0 {
				s.log.Warn("Upload partially committed", "committed", committed, "failed", st.Name)
			}
			s.uploadFailed(w, r, st.Name, err)
			return
		}
		committed = append(committed, st.Name)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func isFilePart(p *multipart.Part) bool {
	if p.FileName() != "" {
		return true
	}
	switch p.FormName() {
	case "file", "files":
		return true
	}
	return false
}

func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, raw string, err error) {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, errs.ErrInvalidName):
		s.log.Warn("Upload rejected", "name", raw, "error", err)
		if strings.TrimSpace(raw) == "" {
			redirectWithError(w, r, msgNoFile)
		} else {
			redirectWithError(w, r, fmt.Sprintf("Invalid file name %q.", raw))
		}
	case errors.Is(err, errs.ErrPayloadTooLarge), errors.As(err, &mbe):
		s.log.Warn("Upload too large", "name", raw, "limit", s.maxUpload)
		s.tooLarge(w)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Info("Upload aborted by client", "name", raw)
	case errors.Is(err, errs.ErrStorageUnavailable):
		s.log.Error("Saving upload failed", "name", raw, "error", err)
		http.Error(w, fmt.Sprintf("Server error saving %q.", raw), http.StatusInternalServerError)
	default:
		s.log.Warn("Malformed upload", "name", raw, "error", err)
		http.Error(w, "bad multipart", http.StatusBadRequest)
	}
}

func (s *Server) tooLarge(w http.ResponseWriter) {
	msg := fmt.Sprintf("File too large. Maximum upload size is %s.", humanize.IBytes(uint64(s.maxUpload)))
	http.Error(w, msg, http.StatusRequestEntityTooLarge)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("name")
	obj, err := s.files.Open(r.Context(), raw)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidName) {
			s.log.Debug("Download of missing file", "name", raw)
			http.Error(w, "File not found.", http.StatusNotFound)
			return
		}
		s.log.Error("Download failed", "name", raw, "error", err)
		http.Error(w, "An error occurred during download.", http.StatusInternalServerError)
		return
	}
	defer obj.Content.Close()

	ct := "application/octet-stream"
	if mt, err := mimetype.DetectReader(obj.Content); err == nil {
		ct = mt.String()
	}
	if _, err := obj.Content.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "An error occurred during download.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Name))
	s.log.Debug("Serving file", "name", obj.Name, "size", obj.Size)
	http.ServeContent(w, r, obj.Name, obj.ModTime, obj.Content)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("name")
	err := s.files.Delete(r.Context(), raw)
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, errs.ErrInvalidName):
		redirectWithError(w, r, fmt.Sprintf("Invalid file name %q.", raw))
	default:
		s.log.Error("Delete failed", "name", raw, "error", err)
		http.Error(w, "An error occurred during delete.", http.StatusInternalServerError)
	}
}

type health struct {
	Status string `json:"status"`
	Files  int    `json:"files"`
	Free   uint64 `json:"freeBytes,omitempty"`
	Total  uint64 `json:"totalBytes,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names, err := s.files.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, health{Status: "storage unavailable"})
		return
	}
	h := health{Status: "ok", Files: len(names)}
	if u, err := disk.Usage(s.files.Root()); err == nil {
		h.Free, h.Total = u.Free, u.Total
	}
	writeJSON(w, http.StatusOK, h)
}

// --- helpers ---

func redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
