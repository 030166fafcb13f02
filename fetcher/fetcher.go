// Package fetcher implements the Fetcher of spec §4.3: a single conditional
// HTTP GET, classified into NotModified / Ok / Gone / OtherError / Transport.
package fetcher

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/validatorcache"
)

// DefaultTimeout is the recommended per-request timeout (spec §5).
const DefaultTimeout = 60 * time.Second

// DefaultUserAgent identifies this crawler to origins.
const DefaultUserAgent = "ghost-static-site-generator/1.0 (+mirroring crawler)"

// Kind classifies a fetch outcome.
type Kind int

const (
	KindOK Kind = iota
	KindNotModified
	KindGone
	KindOtherError
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotModified:
		return "not-modified"
	case KindGone:
		return "gone"
	case KindOtherError:
		return "other-error"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single fetch.
type Result struct {
	Kind         Kind
	Status       int // 0 for Transport
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string
	Err          error // set when Kind == KindTransport
}

// binaryContentTypePrefixes classify a response as binary by Content-Type.
var binaryContentTypePrefixes = []string{"image/", "video/", "audio/", "font/"}

var binaryContentTypesExact = map[string]struct{}{
	"application/pdf":         {},
	"application/octet-stream": {},
}

var binaryExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".ico": {},
	".mp4": {}, ".mov": {}, ".webm": {}, ".avi": {}, ".mkv": {},
	".mp3": {}, ".wav": {}, ".ogg": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".pdf": {}, ".zip": {}, ".gz": {},
}

// IsBinary reports whether a response should be treated as binary rather
// than decoded as text, per spec §4.3.
func IsBinary(contentType, urlPath string) bool {
	t, _, _ := strings.Cut(contentType, ";")
	t = strings.TrimSpace(strings.ToLower(t))
	for _, prefix := range binaryContentTypePrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	if _, ok := binaryContentTypesExact[t]; ok {
		return true
	}
	ext := strings.ToLower(path.Ext(urlPath))
	_, ok := binaryExtensions[ext]
	return ok
}

// Fetcher performs conditional GETs and updates the ValidatorCache. It has
// no knowledge of files on disk; persistence is the Crawler's job.
type Fetcher struct {
	Client     *http.Client
	Validator  *validatorcache.Cache
	UserAgent  string
	Timeout    time.Duration
}

// New builds a Fetcher. Redirects are followed transparently by the
// underlying client's default policy (spec §4.3): the originally requested
// URL remains the cache key, the response seen is the final one.
func New(validator *validatorcache.Cache) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{},
			},
		},
		Validator: validator,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
	}
}

// Fetch performs a single conditional GET against url.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Kind: KindTransport, Err: err}
	}
	req.Header.Set("User-Agent", f.UserAgent)

	if f.Validator != nil {
		h := f.Validator.ConditionalHeaders(url)
		if h.IfNoneMatch != "" {
			req.Header.Set("If-None-Match", h.IfNoneMatch)
		}
		if h.IfModifiedSince != "" {
			req.Header.Set("If-Modified-Since", h.IfModifiedSince)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Result{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Kind: KindNotModified, Status: resp.StatusCode}

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{Kind: KindTransport, Err: err}
		}
		etag := resp.Header.Get("ETag")
		lastModified := resp.Header.Get("Last-Modified")
		if f.Validator != nil {
			f.Validator.Update(url, etag, lastModified, "")
		}
		return Result{
			Kind:         KindOK,
			Status:       resp.StatusCode,
			Body:         body,
			ContentType:  resp.Header.Get("Content-Type"),
			ETag:         etag,
			LastModified: lastModified,
		}

	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return Result{Kind: KindGone, Status: resp.StatusCode}

	default:
		io.Copy(io.Discard, resp.Body)
		return Result{Kind: KindOtherError, Status: resp.StatusCode}
	}
}
