package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"lanshare/internal/errs"
	"lanshare/internal/store"
)

type upload struct {
	field    string
	filename string
	content  []byte
}

func newTestServer(t *testing.T, maxBytes int64) (http.Handler, *store.Store) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	st, err := store.New(store.Options{
		Root:     filepath.Join(t.TempDir(), "uploads"),
		MaxBytes: maxBytes,
		Logger:   log,
	})
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))

	srv, err := New(Options{Files: st, MaxUploadBytes: maxBytes, Logger: log})
	require.NoError(t, err)
	return srv.Handler(), st
}

func multipartRequest(t *testing.T, parts ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename == "" && p.field != "file" {
			require.NoError(t, mw.WriteField(p.field, string(p.content)))
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func listNames(t *testing.T, h http.Handler) []string {
	t.Helper()
	w := serve(h, httptest.NewRequest(http.MethodGet, "/files_json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	var names []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &names))
	return names
}

func rootEntries(t *testing.T, st *store.Store) []string {
	t.Helper()
	ents, err := os.ReadDir(st.Root())
	require.NoError(t, err)
	var out []string
	for _, e := range ents {
		if e.Name() != store.StateDirName {
			out = append(out, e.Name())
		}
	}
	return out
}

func errorParam(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/", loc.Path)
	return loc.Query().Get("error")
}

func TestIndex(t *testing.T) {
	h, _ := newTestServer(t, 0)
	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), `enctype="multipart/form-data"`)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestListEmptyIsJSONArray(t *testing.T) {
	h, _ := newTestServer(t, 0)
	w := serve(h, httptest.NewRequest(http.MethodGet, "/files_json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestUploadListDownloadDelete(t *testing.T) {
	req := require.New(t)
	h, _ := newTestServer(t, 0)
	content := []byte("%PDF-1.4\nquarterly figures")

	w := serve(h, multipartRequest(t, upload{field: "file", filename: "report final.pdf", content: content}))
	req.Equal(http.StatusSeeOther, w.Code)
	req.Equal("/", w.Header().Get("Location"))

	req.Equal([]string{"report_final.pdf"}, listNames(t, h))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/download/report_final.pdf", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal(content, w.Body.Bytes())
	req.Equal(`attachment; filename="report_final.pdf"`, w.Header().Get("Content-Disposition"))
	req.Equal("application/pdf", w.Header().Get("Content-Type"))

	w = serve(h, httptest.NewRequest(http.MethodPost, "/delete/report_final.pdf", nil))
	req.Equal(http.StatusSeeOther, w.Code)
	req.Equal("/", w.Header().Get("Location"))

	req.Empty(listNames(t, h))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/download/report_final.pdf", nil))
	req.Equal(http.StatusNotFound, w.Code)
	req.Equal("File not found.\n", w.Body.String())
}

func TestUploadMultipleFiles(t *testing.T) {
	h, _ := newTestServer(t, 0)
	w := serve(h, multipartRequest(t,
		upload{field: "note", content: []byte("ignored form field")},
		upload{field: "file", filename: "b.txt", content: []byte("b")},
		upload{field: "file", filename: "a.txt", content: []byte("a")},
	))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, []string{"a.txt", "b.txt"}, listNames(t, h))
}

func TestUploadRejectsEmptyFilename(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)

	w := serve(h, multipartRequest(t, upload{field: "file", filename: "", content: []byte("x")}))
	req.Equal(http.StatusSeeOther, w.Code)
	req.Equal("No file selected for upload.", errorParam(t, w))
	req.Empty(rootEntries(t, st))
}

func TestUploadRejectsWholeRequestOnInvalidName(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)

	w := serve(h, multipartRequest(t,
		upload{field: "file", filename: "good.txt", content: []byte("fine")},
		upload{field: "file", filename: "../..", content: []byte("bad")},
	))
	req.Equal(http.StatusSeeOther, w.Code)
	req.Contains(errorParam(t, w), "Invalid file name")
	req.Empty(rootEntries(t, st))

	ents, err := os.ReadDir(filepath.Join(st.Root(), store.StateDirName, "tmp"))
	req.NoError(err)
	req.Empty(ents)
}

// failingCommit refuses to commit one name and delegates everything else.
type failingCommit struct {
	*store.Store
	name string
}

func (f failingCommit) Commit(st *store.Staged) error {
	if st.Name == f.name {
		return fmt.Errorf("%w: disk full", errs.ErrStorageUnavailable)
	}
	return f.Store.Commit(st)
}

func TestUploadCommitFailureKeepsEarlierFiles(t *testing.T) {
	req := require.New(t)
	_, st := newTestServer(t, 0)
	srv, err := New(Options{Files: failingCommit{Store: st, name: "b.txt"}, Logger: logs.GetLoggerFromLevel(slog.LevelDebug)})
	req.NoError(err)
	h := srv.Handler()

	w := serve(h, multipartRequest(t,
		upload{field: "file", filename: "a.txt", content: []byte("a")},
		upload{field: "file", filename: "b.txt", content: []byte("b")},
	))
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal([]string{"a.txt"}, rootEntries(t, st))

	ents, err := os.ReadDir(filepath.Join(st.Root(), store.StateDirName, "tmp"))
	req.NoError(err)
	req.Empty(ents)
}

func TestUploadWithoutFilePart(t *testing.T) {
	h, st := newTestServer(t, 0)
	w := serve(h, multipartRequest(t, upload{field: "comment", content: []byte("hello")}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "No file selected for upload.", errorParam(t, w))
	require.Empty(t, rootEntries(t, st))
}

func TestUploadNotMultipart(t *testing.T) {
	h, _ := newTestServer(t, 0)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	r.Header.Set("Content-Type", "text/plain")
	w := serve(h, r)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "No file selected for upload.", errorParam(t, w))
}

func TestUploadTooLarge(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 1024)

	w := serve(h, multipartRequest(t, upload{field: "file", filename: "big.bin", content: bytes.Repeat([]byte("x"), 4096)}))
	req.Equal(http.StatusRequestEntityTooLarge, w.Code)
	req.Contains(w.Body.String(), "1.0 KiB")
	req.Empty(rootEntries(t, st))
}

func TestUploadTooLargeWithUnknownLength(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 1024)

	r := multipartRequest(t, upload{field: "file", filename: "big.bin", content: bytes.Repeat([]byte("x"), 4096)})
	r.ContentLength = -1
	w := serve(h, r)
	req.Equal(http.StatusRequestEntityTooLarge, w.Code)
	req.Empty(rootEntries(t, st))

	ents, err := os.ReadDir(filepath.Join(st.Root(), store.StateDirName, "tmp"))
	req.NoError(err)
	req.Empty(ents)
}

func TestUploadOverwriteKeepsLastWrite(t *testing.T) {
	req := require.New(t)
	h, _ := newTestServer(t, 0)

	serve(h, multipartRequest(t, upload{field: "file", filename: "v.txt", content: []byte("first version")}))
	serve(h, multipartRequest(t, upload{field: "file", filename: "v.txt", content: []byte("second")}))

	req.Equal([]string{"v.txt"}, listNames(t, h))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/download/v.txt", nil))
	req.Equal("second", w.Body.String())
}

func TestDownloadSanitizesPath(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)
	_, err := st.Save(context.Background(), "my file.txt", strings.NewReader("inside"))
	req.NoError(err)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/download/my%20file.txt", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("inside", w.Body.String())
	req.Equal(`attachment; filename="my_file.txt"`, w.Header().Get("Content-Disposition"))
}

func TestDownloadSupportsRange(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)
	_, err := st.Save(context.Background(), "digits.txt", strings.NewReader("0123456789"))
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/download/digits.txt", nil)
	r.Header.Set("Range", "bytes=2-4")
	w := serve(h, r)
	req.Equal(http.StatusPartialContent, w.Code)
	req.Equal("234", w.Body.String())
}

func TestDownloadInvalidNameIsNotFound(t *testing.T) {
	h, _ := newTestServer(t, 0)
	w := serve(h, httptest.NewRequest(http.MethodGet, "/download/___", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteMissingStillRedirects(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)
	_, err := st.Save(context.Background(), "keep.txt", strings.NewReader("x"))
	req.NoError(err)

	w := serve(h, httptest.NewRequest(http.MethodPost, "/delete/never-there.txt", nil))
	req.Equal(http.StatusSeeOther, w.Code)
	req.Equal("/", w.Header().Get("Location"))
	req.Equal([]string{"keep.txt"}, listNames(t, h))
}

func TestDeleteRequiresPost(t *testing.T) {
	h, st := newTestServer(t, 0)
	_, err := st.Save(context.Background(), "keep.txt", strings.NewReader("x"))
	require.NoError(t, err)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/delete/keep.txt", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, []string{"keep.txt"}, listNames(t, h))
}

func TestSearch(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)
	for _, n := range []string{"cat.png", "Catalog.pdf", "dog.png"} {
		_, err := st.Save(context.Background(), n, strings.NewReader("x"))
		req.NoError(err)
	}

	w := serve(h, httptest.NewRequest(http.MethodGet, "/search?q=cat", nil))
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`["Catalog.pdf","cat.png"]`, w.Body.String())
}

func TestThumb(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)

	img := image.NewRGBA(image.Rect(0, 0, 600, 300))
	for x := 0; x < 600; x++ {
		img.Set(x, 150, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	req.NoError(png.Encode(&buf, img))
	_, err := st.Save(context.Background(), "wide.png", &buf)
	req.NoError(err)
	_, err = st.Save(context.Background(), "notes.txt", strings.NewReader("plain text"))
	req.NoError(err)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/thumb/wide.png", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("image/jpeg", w.Header().Get("Content-Type"))
	thumb, _, err := image.Decode(bytes.NewReader(w.Body.Bytes()))
	req.NoError(err)
	req.Equal(256, thumb.Bounds().Dx())
	req.Equal(128, thumb.Bounds().Dy())

	w = serve(h, httptest.NewRequest(http.MethodGet, "/thumb/notes.txt", nil))
	req.Equal(http.StatusUnsupportedMediaType, w.Code)

	w = serve(h, httptest.NewRequest(http.MethodGet, "/thumb/missing.png", nil))
	req.Equal(http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	h, st := newTestServer(t, 0)
	_, err := st.Save(context.Background(), "one.txt", strings.NewReader("1"))
	req.NoError(err)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, w.Code)
	var body health
	req.NoError(json.NewDecoder(io.LimitReader(w.Body, 1<<16)).Decode(&body))
	req.Equal("ok", body.Status)
	req.Equal(1, body.Files)
}

func TestNew_RequiresFiles(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
