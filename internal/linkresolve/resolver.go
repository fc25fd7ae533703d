// Package linkresolve turns links found in posts into page titles without
// ever fetching loopback, link-local or private-range addresses.
package linkresolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Reason explains why a link stayed unresolved.
type Reason string

const (
	ReasonSelf      Reason = "self-referential"
	ReasonInvalid   Reason = "invalid-url"
	ReasonBlocked   Reason = "blocked-by-ssrf-policy"
	ReasonDNS       Reason = "dns-failure"
	ReasonTimeout   Reason = "timeout"
	ReasonRedirects Reason = "too-many-redirects"
	ReasonHTTP      Reason = "http-status"
	ReasonFetch     Reason = "fetch-failed"
	ReasonNoTitle   Reason = "no-title"
)

// Resolution is the outcome for one URL: a title, or the reason there is none.
type Resolution struct {
	Title  string `json:"title,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

// Resolved reports whether a usable title was found.
func (r Resolution) Resolved() bool { return r.Title != "" }

// Durable reports whether the outcome holds across runs. Timeouts, DNS,
// HTTP and transport failures are retried by the next run.
func (r Resolution) Durable() bool {
	if r.Resolved() {
		return true
	}
	switch r.Reason {
	case ReasonBlocked, ReasonInvalid, ReasonNoTitle:
		return true
	}
	return false
}

const (
	defaultTimeout      = 5 * time.Second
	defaultMaxRedirects = 5
	maxBodyBytes        = 2 << 20
	userAgent           = "post-archivist/1.0 (+link-title)"
)

var errTooManyRedirects = errors.New("linkresolve: too many redirects")

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	SkipHosts    []string
	Store        TitleStore
	// Lookup and Dial replace DNS resolution and the TCP dialer.
	Lookup LookupFunc
	Dial   DialFunc
}

type call struct {
	done chan struct{}
	res  Resolution
}

// Resolver fetches page titles and memoizes them per URL for the life of
// the value; with a Store the memo survives across runs.
type Resolver struct {
	client       *http.Client
	guard        guard
	timeout      time.Duration
	maxRedirects int
	skip         map[string]struct{}
	store        TitleStore

	mu    sync.Mutex
	memo  map[string]Resolution
	dirty map[string]struct{}
	calls map[string]*call
}

func New(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.Lookup == nil {
		opts.Lookup = defaultLookup
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{Timeout: opts.Timeout}).DialContext
	}
	r := &Resolver{
		guard:        guard{lookup: opts.Lookup, dial: opts.Dial},
		timeout:      opts.Timeout,
		maxRedirects: opts.MaxRedirects,
		skip:         map[string]struct{}{},
		store:        opts.Store,
		memo:         map[string]Resolution{},
		dirty:        map[string]struct{}{},
		calls:        map[string]*call{},
	}
	for _, h := range opts.SkipHosts {
		h = normalizeHost(h)
		if h != "" {
			r.skip[h] = struct{}{}
		}
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           r.guard.dialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
	}
	r.client = &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > r.maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("linkresolve: redirect to unsupported scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
	return r
}

// Load seeds the memo from durable stored outcomes. Entries already
// resolved in this run win.
func (r *Resolver) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	saved, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for u, res := range saved {
		if !res.Durable() {
			continue
		}
		if _, ok := r.memo[u]; !ok {
			r.memo[u] = res
		}
	}
	return nil
}

// Flush persists durable resolutions made since the last flush.
func (r *Resolver) Flush(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	pending := make(map[string]Resolution, len(r.dirty))
	for u := range r.dirty {
		pending[u] = r.memo[u]
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	if err := r.store.Save(ctx, pending); err != nil {
		return err
	}
	r.mu.Lock()
	for u := range pending {
		delete(r.dirty, u)
	}
	r.mu.Unlock()
	return nil
}

// Lookup returns a memoized resolution without fetching.
func (r *Resolver) Lookup(rawURL string) (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.memo[rawURL]
	return res, ok
}

// Resolve returns the title for rawURL. Every failure degrades to an
// unresolved Resolution; a URL is fetched at most once per Resolver.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Resolution {
	r.mu.Lock()
	if res, ok := r.memo[rawURL]; ok {
		r.mu.Unlock()
		return res
	}
	if c, ok := r.calls[rawURL]; ok {
		r.mu.Unlock()
		<-c.done
		return c.res
	}
	c := &call{done: make(chan struct{})}
	r.calls[rawURL] = c
	r.mu.Unlock()

	c.res = r.fetch(ctx, rawURL)

	r.mu.Lock()
	r.memo[rawURL] = c.res
	if c.res.Durable() {
		r.dirty[rawURL] = struct{}{}
	}
	delete(r.calls, rawURL)
	r.mu.Unlock()
	close(c.done)

	if c.res.Resolved() {
		slog.Debug("linkresolve: title", "url", rawURL, "title", c.res.Title)
	} else if c.res.Reason != ReasonSelf {
		slog.Debug("linkresolve: unresolved", "url", rawURL, "reason", c.res.Reason)
	}
	return c.res
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) Resolution {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return Resolution{Reason: ReasonInvalid}
	}
	if _, ok := r.skip[normalizeHost(u.Hostname())]; ok {
		return Resolution{Reason: ReasonSelf}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.guard.check(ctx, u.Hostname()); err != nil {
		return Resolution{Reason: classify(ctx, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Resolution{Reason: ReasonInvalid}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	resp, err := r.client.Do(req)
	if err != nil {
		return Resolution{Reason: classify(ctx, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Resolution{Reason: ReasonHTTP}
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Resolution{Reason: classify(ctx, err)}
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if title == "" {
		return Resolution{Reason: ReasonNoTitle}
	}
	return Resolution{Title: title}
}

func classify(ctx context.Context, err error) Reason {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, ErrBlocked):
		return ReasonBlocked
	case errors.Is(err, errTooManyRedirects):
		return ReasonRedirects
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.Is(err, ErrNoAddress), errors.As(err, &dnsErr):
		return ReasonDNS
	default:
		return ReasonFetch
	}
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}
