// Package pipeline orchestrates the transform flow: resolve the tenant,
// normalize options, derive the cache key, check the store, and only on a
// miss fetch, encode, and persist. Everything above it (HTTP handlers)
// deals in requests and results; everything below it deals in one concern
// at a time.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/musefactory/mediacache/internal/cachekey"
	"github.com/musefactory/mediacache/internal/encoder"
	mcerr "github.com/musefactory/mediacache/internal/errors"
	"github.com/musefactory/mediacache/internal/ledger"
	"github.com/musefactory/mediacache/internal/metrics"
	"github.com/musefactory/mediacache/internal/notify"
	"github.com/musefactory/mediacache/internal/origin"
	"github.com/musefactory/mediacache/internal/storage"
	"github.com/musefactory/mediacache/internal/tenant"
	"github.com/musefactory/mediacache/internal/transform"
)

// Request is one raw transform request. Width, Quality, and Format carry
// the unparsed query values; the pipeline normalizes them.
type Request struct {
	Tenant   string
	URL      string
	Width    string
	Quality  string
	Format   string
	Provider string
}

// UploadRequest is one pre-fetched payload to encode and persist. The
// cache key derives from the encoded output, so identical uploads
// deduplicate regardless of filename.
type UploadRequest struct {
	Tenant   string
	Data     []byte
	Width    string
	Quality  string
	Format   string
	Provider string
}

// Result describes a completed transform.
type Result struct {
	// URL is the public URL of the stored object.
	URL string
	// Key is the full storage key ({tenant}/{hash}.{ext}).
	Key string
	// Data holds the encoded payload. Nil on a cache hit; the caller
	// redirects instead of serving bytes.
	Data        []byte
	ContentType string
	CacheHit    bool
	Descriptor  encoder.Descriptor
}

// Pipeline wires the transform stages together. Safe for concurrent use.
type Pipeline struct {
	tenants  *tenant.Resolver
	norm     *transform.Normalizer
	fetcher  *origin.Fetcher
	selector *storage.Selector
	image    encoder.Encoder
	video    encoder.Encoder
	usage    *ledger.Ledger
	alerter  notify.Alerter
	provider string

	// group coalesces concurrent misses on the same storage key so a
	// popular cold URL is fetched and encoded once, not per request.
	group singleflight.Group
}

// Options carries the pipeline's collaborators. Video and Usage may be
// nil; Alerter defaults to a no-op.
type Options struct {
	Tenants  *tenant.Resolver
	Norm     *transform.Normalizer
	Fetcher  *origin.Fetcher
	Selector *storage.Selector
	Image    encoder.Encoder
	Video    encoder.Encoder
	Usage    *ledger.Ledger
	Alerter  notify.Alerter
	// Provider, when set, forces a storage provider for requests that do
	// not name one.
	Provider string
}

// New builds a Pipeline.
func New(opts Options) *Pipeline {
	alerter := opts.Alerter
	if alerter == nil {
		alerter = notify.Nop{}
	}
	return &Pipeline{
		tenants:  opts.Tenants,
		norm:     opts.Norm,
		fetcher:  opts.Fetcher,
		selector: opts.Selector,
		image:    opts.Image,
		video:    opts.Video,
		usage:    opts.Usage,
		alerter:  alerter,
		provider: opts.Provider,
	}
}

// pickStore resolves the effective provider override for a request.
func (p *Pipeline) pickStore(override string) (storage.ObjectStore, error) {
	if override == "" {
		override = p.provider
	}
	return p.selector.Pick(override)
}

// Transform serves one request, hitting the cache when possible.
func (p *Pipeline) Transform(ctx context.Context, req Request) (*Result, error) {
	ns := p.tenants.Resolve(req.Tenant)

	opts, err := p.norm.Normalize(req.Width, req.Quality, req.Format)
	if err != nil {
		return nil, p.fail(ns, err)
	}

	// The URL is screened before any key derivation or storage traffic.
	if _, err := p.fetcher.Validate(req.URL); err != nil {
		return nil, p.fail(ns, err)
	}

	hash := cachekey.Derive(req.URL, opts)
	key := cachekey.StorageKey(ns, hash, opts.Format)

	store, err := p.pickStore(req.Provider)
	if err != nil {
		return nil, p.fail(ns, err)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil {
		// A failed existence check is a backend fault, never a miss.
		// Recomputing here would hide outages behind silently degraded
		// cache behavior.
		metrics.CacheLookupsTotal.WithLabelValues(ns, "error").Inc()
		return nil, p.fail(ns, mcerr.Storage("cache existence check failed", err))
	}

	if exists {
		metrics.CacheLookupsTotal.WithLabelValues(ns, "hit").Inc()
		res := &Result{
			URL:         store.URLFor(key),
			Key:         key,
			ContentType: opts.Format.ContentType(),
			CacheHit:    true,
		}
		p.record(ctx, ns, key, req.URL, opts.Format, 0, true)
		return res, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues(ns, "miss").Inc()

	// Coalesce concurrent misses on the same key. Losers of the race
	// share the winner's result; a concurrent Put of identical bytes is
	// harmless either way. The flight is scoped to the resolved store:
	// the same key bound for two providers must be written to both.
	v, err, _ := p.group.Do(store.Name()+"\x00"+key, func() (any, error) {
		return p.computeAndStore(ctx, ns, key, req.URL, opts, store)
	})
	if err != nil {
		return nil, p.fail(ns, err)
	}
	return v.(*Result), nil
}

// computeAndStore runs the miss path: fetch, encode, persist.
func (p *Pipeline) computeAndStore(ctx context.Context, ns, key, source string, opts transform.Options, store storage.ObjectStore) (*Result, error) {
	data, _, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	metrics.OriginFetchBytes.Observe(float64(len(data)))

	encoded, desc, err := p.encode(data, opts)
	if err != nil {
		return nil, err
	}

	if err := store.Put(ctx, key, encoded, opts.Format.ContentType()); err != nil {
		return nil, mcerr.Storage("persisting encoded object", err)
	}
	metrics.StoredBytesTotal.WithLabelValues(store.Name()).Add(float64(len(encoded)))

	p.record(ctx, ns, key, source, opts.Format, int64(len(encoded)), false)

	return &Result{
		URL:         store.URLFor(key),
		Key:         key,
		Data:        encoded,
		ContentType: opts.Format.ContentType(),
		Descriptor:  desc,
	}, nil
}

// Upload encodes a client-supplied payload and persists it under a key
// derived from the encoded bytes.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	ns := p.tenants.Resolve(req.Tenant)

	if len(req.Data) == 0 {
		return nil, p.fail(ns, mcerr.Validation("empty upload payload"))
	}

	opts, err := p.norm.Normalize(req.Width, req.Quality, req.Format)
	if err != nil {
		return nil, p.fail(ns, err)
	}

	store, err := p.pickStore(req.Provider)
	if err != nil {
		return nil, p.fail(ns, err)
	}

	encoded, desc, err := p.encode(req.Data, opts)
	if err != nil {
		return nil, p.fail(ns, err)
	}

	hash := cachekey.DeriveContent(encoded)
	key := cachekey.StorageKey(ns, hash, opts.Format)

	exists, err := store.Exists(ctx, key)
	if err != nil {
		return nil, p.fail(ns, mcerr.Storage("cache existence check failed", err))
	}
	if !exists {
		if err := store.Put(ctx, key, encoded, opts.Format.ContentType()); err != nil {
			return nil, p.fail(ns, mcerr.Storage("persisting uploaded object", err))
		}
		metrics.StoredBytesTotal.WithLabelValues(store.Name()).Add(float64(len(encoded)))
	}

	p.record(ctx, ns, key, "", opts.Format, int64(len(encoded)), exists)

	return &Result{
		URL:         store.URLFor(key),
		Key:         key,
		Data:        encoded,
		ContentType: opts.Format.ContentType(),
		CacheHit:    exists,
		Descriptor:  desc,
	}, nil
}

// encode dispatches to the image or video encoder by format and times the
// transcode.
func (p *Pipeline) encode(data []byte, opts transform.Options) ([]byte, encoder.Descriptor, error) {
	enc := p.image
	if opts.Format.Video() {
		if p.video == nil {
			return nil, encoder.Descriptor{}, mcerr.Validation("video transcoding is not enabled")
		}
		enc = p.video
	}

	start := time.Now()
	encoded, desc, err := enc.Encode(data, opts)
	if err != nil {
		return nil, encoder.Descriptor{}, err
	}
	metrics.EncodeDuration.WithLabelValues(string(opts.Format)).Observe(time.Since(start).Seconds())
	return encoded, desc, nil
}

// record writes a usage entry. Ledger failures are logged and swallowed;
// accounting never fails a request.
func (p *Pipeline) record(ctx context.Context, ns, key, source string, f transform.Format, bytes int64, hit bool) {
	if p.usage == nil {
		return
	}
	err := p.usage.Record(ctx, ledger.Entry{
		Tenant:   ns,
		Key:      key,
		Source:   source,
		Format:   string(f),
		Bytes:    bytes,
		CacheHit: hit,
	})
	if err != nil {
		slog.Warn("Usage ledger write failed", "tenant", ns, "error", err)
	}
}

// fail counts the error, alerts on server faults, and passes it through.
func (p *Pipeline) fail(ns string, err error) error {
	kind := mcerr.KindOf(err)
	metrics.PipelineErrorsTotal.WithLabelValues(kind.String()).Inc()

	if pe := mcerr.AsError(err); pe != nil && pe.ServerFault() {
		slog.Error("Pipeline server fault", "tenant", ns, "kind", kind.String(), "error", err)
		p.alerter.Alert(
			fmt.Sprintf("mediacache %s failure", kind),
			fmt.Sprintf("tenant: %s\nerror: %v", ns, err))
	}
	return err
}
