package api

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/felixgeelhaar/caravan/internal/files"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead covers boundaries and part headers around the file.
const multipartOverhead = 64 << 10

// uploadFile streams the "file" part of a multipart body into the store.
func (h *handlers) uploadFile(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, files.MaxUploadSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return badRequest("multipart/form-data body required")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return badRequest("file part is required")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return files.ErrFileTooLarge
			}
			return badRequest("malformed multipart body")
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		info, err := h.c.Files.Put(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return files.ErrFileTooLarge
			}
			return err
		}
		h.logger.InfoContext(r.Context(), "file uploaded", "path", info.Path, "size", info.Size)
		writeJSON(w, http.StatusCreated, info)
		return nil
	}
}

func (h *handlers) downloadFile(w http.ResponseWriter, r *http.Request) error {
	f, err := h.c.Files.Open(chi.URLParam(r, "*"))
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(w, r, path.Base(st.Name()), st.ModTime(), f)
	return nil
}
