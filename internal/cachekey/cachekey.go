// Package cachekey derives deterministic storage keys for transformed
// media.
//
// The content hash covers the source reference and the normalized
// transform options but never the tenant, so operators can audit
// duplication across namespaces. The tenant only contributes the path
// prefix of the storage key.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/musefactory/mediacache/internal/transform"
)

// Derive returns the hex SHA-256 hash identifying one (source, options)
// transform. The source reference is used verbatim; query-string ordering
// is not canonicalized, so trivially reordered URLs hash differently.
// Options must already be normalized: defaults are substituted before
// hashing so omitted and explicit-default parameters collapse to the same
// key. Collision resistance is a correctness property here; a collision
// would silently serve the wrong object.
func Derive(source string, opts transform.Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|w=%d|q=%d|l=%t|f=%s", source, opts.Width, opts.Quality, opts.Lossless, opts.Format)
	return hex.EncodeToString(h.Sum(nil))
}

// DeriveContent returns the hex SHA-256 hash of a byte payload. Used for
// the upload path, where the key is derived from the encoded output
// rather than a source reference.
func DeriveContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StorageKey combines the tenant namespace, a content hash, and the
// output format into the persisted object key: {tenant}/{hash}.{ext}.
func StorageKey(namespace, hash string, f transform.Format) string {
	return namespace + "/" + hash + "." + f.Ext()
}
