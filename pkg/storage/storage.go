package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the blob storage contract shared by every driver. Implementations
// must be safe for concurrent use by multiple goroutines.
type ObjectStore interface {
	// Put stores data under key and returns its public URL. Failures are *UploadError.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object a previously issued URL points to. URLs outside the
	// store's domain return false without contacting the backend.
	Delete(ctx context.Context, rawURL string) (bool, error)
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	URL(key string) string
	KeyFromURL(rawURL string) (string, bool)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// UploadError marks a failed Put so callers can tell storage failures apart.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// URLBuilder maps keys to public URLs of the form scheme://domain/key and back.
// The domain may carry a path prefix, e.g. "cdn.example.com/media".
type URLBuilder struct {
	scheme   string
	host     string
	basePath string
}

// NewURLBuilder normalises scheme and domain. An empty scheme means https.
func NewURLBuilder(scheme, domain string) URLBuilder {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		scheme = "https"
	}
	domain = strings.TrimSpace(domain)
	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+3:]
	}
	domain = strings.Trim(domain, "/")
	host, basePath, _ := strings.Cut(domain, "/")
	return URLBuilder{scheme: scheme, host: strings.ToLower(host), basePath: strings.Trim(basePath, "/")}
}

// Domain returns the configured host and base path.
func (b URLBuilder) Domain() string {
	if b.basePath == "" {
		return b.host
	}
	return b.host + "/" + b.basePath
}

// URL returns the public URL for key.
func (b URLBuilder) URL(key string) string {
	return b.scheme + "://" + b.Domain() + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL extracts the object key from a URL issued by URL. It reports false
// for foreign hosts, malformed input and keys escaping the namespace.
func (b URLBuilder) KeyFromURL(rawURL string) (string, bool) {
	if b.host == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Host, b.host) {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, "/")
	if b.basePath != "" {
		if !strings.HasPrefix(path, b.basePath+"/") {
			return "", false
		}
		path = strings.TrimPrefix(path, b.basePath+"/")
	}
	if path == "" {
		return "", false
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", false
		}
	}
	return path, true
}
