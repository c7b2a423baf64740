package handlers

import (
	"io"
	"net/http"

	mcerr "github.com/musefactory/mediacache/internal/errors"
	"github.com/musefactory/mediacache/internal/pipeline"
)

// UploadHandler serves POST /upload.
type UploadHandler struct {
	pipe     *pipeline.Pipeline
	maxBytes int64
}

// NewUploadHandler builds an UploadHandler. maxBytes caps the request
// body, matching the origin fetch ceiling.
func NewUploadHandler(pipe *pipeline.Pipeline, maxBytes int64) *UploadHandler {
	return &UploadHandler{pipe: pipe, maxBytes: maxBytes}
}

// uploadResponse is the JSON body for a successful upload.
type uploadResponse struct {
	URL    string `json:"url"`
	Size   int    `json:"size"`
	Format string `json:"format"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Upload accepts a multipart form with an "image" file field, encodes it
// with the requested options, and persists it under a content-derived key.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, mcerr.Validation("missing image file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, mcerr.Validation("reading upload payload: %v", err))
		return
	}

	res, err := h.pipe.Upload(r.Context(), pipeline.UploadRequest{
		Tenant:   r.FormValue("client"),
		Data:     data,
		Width:    r.FormValue("w"),
		Quality:  r.FormValue("q"),
		Format:   r.FormValue("f"),
		Provider: r.FormValue("provider"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL:    res.URL,
		Size:   res.Descriptor.Size,
		Format: string(res.Descriptor.Format),
		Width:  res.Descriptor.Width,
		Height: res.Descriptor.Height,
	})
}
