package httpserver

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"lanshare/internal/errs"
)

const thumbMax = 256

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("name")
	obj, err := s.files.Open(r.Context(), raw)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidName) {
			http.Error(w, "File not found.", http.StatusNotFound)
			return
		}
		http.Error(w, "thumbnail failed", http.StatusInternalServerError)
		return
	}
	defer obj.Content.Close()

	mt, err := mimetype.DetectReader(obj.Content)
	if err != nil || !strings.HasPrefix(mt.String(), "image/") {
		http.Error(w, "not an image", http.StatusUnsupportedMediaType)
		return
	}
	if _, err := obj.Content.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "thumbnail failed", http.StatusInternalServerError)
		return
	}

	b, err := makeThumb(obj.Content, thumbMax)
	if err != nil {
		s.log.Debug("Thumbnail decode failed", "name", obj.Name, "error", err)
		http.Error(w, "unsupported image", http.StatusUnsupportedMediaType)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(b)
}

func makeThumb(r io.Reader, max int) ([]byte, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}
	if max <= 0 {
		max = thumbMax
	}

	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = h * max / w
		}
	} else {
		if h > max {
			nh = max
			nw = w * max / h
		}
	}
	nw = maxInt(nw, 1)
	nh = maxInt(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
