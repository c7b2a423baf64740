package handlers

import (
	"net/http"

	"github.com/musefactory/mediacache/internal/pipeline"
)

// cacheControl marks transformed objects as permanently cacheable: the
// key is content-addressed, so the bytes behind a URL never change.
const cacheControl = "public, max-age=31536000, immutable"

// OptimizeHandler serves GET /optimize.
type OptimizeHandler struct {
	pipe *pipeline.Pipeline
}

// NewOptimizeHandler builds an OptimizeHandler.
func NewOptimizeHandler(pipe *pipeline.Pipeline) *OptimizeHandler {
	return &OptimizeHandler{pipe: pipe}
}

// Optimize handles one transform request. A cache hit redirects to the
// stored object; a miss computes the transform and serves the bytes
// directly, so the first caller is not charged a second round trip.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.pipe.Transform(r.Context(), pipeline.Request{
		Tenant:   q.Get("client"),
		URL:      q.Get("url"),
		Width:    q.Get("w"),
		Quality:  q.Get("q"),
		Format:   q.Get("f"),
		Provider: q.Get("provider"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	if res.CacheHit {
		w.Header().Set("X-Cache", "HIT")
		http.Redirect(w, r, res.URL, http.StatusMovedPermanently)
		return
	}

	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}
