package docsite

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/logfields"
)

// LinkStatus is the outcome of checking one link.
type LinkStatus string

const (
	LinkOK      LinkStatus = "ok"
	LinkBroken  LinkStatus = "broken"
	LinkSkipped LinkStatus = "skipped"
)

// Result is the outcome for one link occurrence.
type Result struct {
	Source     string
	Text       string
	Link       string
	Status     LinkStatus
	StatusCode int
	Error      string
}

// Report collects the results of a check run.
type Report struct {
	Results  []Result
	Started  time.Time
	Duration time.Duration
}

// Broken returns the results whose links did not resolve.
func (r *Report) Broken() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == LinkBroken {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether no link is broken.
func (r *Report) OK() bool {
	return len(r.Broken()) == 0
}

// CheckerOptions configures a Checker.
type CheckerOptions struct {
	// DocsDir resolves relative links against the pages found there.
	DocsDir string
	// BaseURL resolves relative links over HTTP when DocsDir is empty.
	BaseURL string
	// PageLinks also checks links found in page bodies. Requires DocsDir.
	PageLinks bool

	Concurrency   int
	RatePerSecond float64
	Timeout       time.Duration
	Retry         *greq.RetryPolicy

	Client  *http.Client
	Metrics *greq.Metrics
	Logger  *slog.Logger
}

// DefaultCheckerOptions returns conservative settings for public sites.
func DefaultCheckerOptions() CheckerOptions {
	return CheckerOptions{
		Concurrency:   8,
		RatePerSecond: 10,
		Timeout:       10 * time.Second,
	}
}

// Checker verifies the links of a site.
type Checker struct {
	opts    CheckerOptions
	limiter *rate.Limiter
}

func NewChecker(opts CheckerOptions) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Checker{opts: opts}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return c
}

type target struct {
	ref    LinkRef
	remote string // absolute URL to fetch
	local  string // site path to look up among pages
	skip   bool
}

// Check verifies every link of site. Remote URLs are fetched once each no
// matter how often they occur. The returned error is only set when ctx ends.
func (c *Checker) Check(ctx context.Context, site *Site) (*Report, error) {
	started := time.Now()

	refs := site.Links()
	var pageLinks map[string]bool
	if c.opts.DocsDir != "" {
		pages, err := ScanPages(c.opts.DocsDir)
		if err != nil {
			return nil, err
		}
		pageLinks = make(map[string]bool, len(pages))
		for _, p := range pages {
			pageLinks[normalizeLocal(p.Link)] = true
		}
		if c.opts.PageLinks {
			for _, p := range pages {
				for _, l := range p.Links {
					refs = append(refs, LinkRef{Source: "page:" + p.Path, Text: p.Title, Link: resolveRelative(p.Link, l)})
				}
			}
		}
	}

	targets := make([]target, 0, len(refs))
	remote := map[string]bool{}
	for _, ref := range refs {
		t := c.classify(ref, pageLinks != nil)
		if t.remote != "" {
			remote[t.remote] = true
		}
		targets = append(targets, t)
	}

	fetched := c.fetchAll(ctx, remote)
	if err := ctx.Err(); err != nil {
		return nil, greq.WrapError(err, greq.CategoryNetwork, "link check canceled").Build()
	}

	report := &Report{Started: started, Results: make([]Result, 0, len(targets))}
	for _, t := range targets {
		res := Result{Source: t.ref.Source, Text: t.ref.Text, Link: t.ref.Link, Status: LinkOK}
		switch {
		case t.skip:
			res.Status = LinkSkipped
		case t.remote != "":
			f := fetched[t.remote]
			res.StatusCode = f.StatusCode
			res.Status = f.Status
			res.Error = f.Error
		case t.local != "":
			if !pageLinks[t.local] {
				res.Status = LinkBroken
				res.Error = "no page for link"
				c.opts.Logger.Debug("Link has no page", logfields.Source(res.Source), logfields.Link(res.Link))
			}
		}
		report.Results = append(report.Results, res)
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		a, b := report.Results[i], report.Results[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Link < b.Link
	})
	report.Duration = time.Since(started)
	return report, nil
}

func (c *Checker) classify(ref LinkRef, havePages bool) target {
	t := target{ref: ref}
	u, err := url.Parse(strings.TrimSpace(ref.Link))
	if err != nil {
		t.skip = true
		return t
	}

	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		u.Fragment = ""
		t.remote = u.String()
	case u.Scheme != "" || u.Host != "":
		// mailto:, tel: and friends cannot be checked.
		t.skip = true
	case u.Path == "":
		// Same-page anchors and bare query strings.
		t.skip = true
	case havePages:
		t.local = normalizeLocal(u.Path)
	case c.opts.BaseURL != "":
		base, err := url.Parse(c.opts.BaseURL)
		if err != nil {
			t.skip = true
			return t
		}
		u.Fragment = ""
		t.remote = base.ResolveReference(u).String()
	default:
		t.skip = true
	}
	return t
}

// normalizeLocal maps the various spellings of a site path to one key:
// /guide/intro.md, /guide/intro.html and /guide/intro/ are all /guide/intro.
func normalizeLocal(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimSuffix(p, ".md")
	p = strings.TrimSuffix(p, ".html")
	p = strings.TrimSuffix(p, "/index")
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

// resolveRelative resolves a link found on the page at pageLink.
func resolveRelative(pageLink, link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" || strings.HasPrefix(u.Path, "/") {
		return link
	}
	base := &url.URL{Path: pageLink}
	return base.ResolveReference(u).String()
}

type fetchResult struct {
	Status     LinkStatus
	StatusCode int
	Error      string
}

func (c *Checker) fetchAll(ctx context.Context, urls map[string]bool) map[string]fetchResult {
	results := make(map[string]fetchResult, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for u := range urls {
		g.Go(func() error {
			res := c.fetch(gctx, u)
			mu.Lock()
			results[u] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Checker) fetch(ctx context.Context, link string) fetchResult {
	resp, err := c.request(greq.HEAD, link).ExecuteContext(ctx)
	if err == nil && headUnsupported(resp.StatusCode) {
		resp.Close()
		resp, err = c.request(greq.GET, link).ExecuteContext(ctx)
	}
	if err != nil {
		c.opts.Logger.Debug("Link check failed", logfields.Link(link), logfields.Error(err))
		return fetchResult{Status: LinkBroken, Error: err.Error()}
	}
	defer resp.Close()

	c.opts.Logger.Debug("Link checked", logfields.Link(link), logfields.Status(resp.StatusCode))
	if resp.StatusCode >= 400 && !existsBehindAuth(resp.StatusCode) {
		return fetchResult{
			Status:     LinkBroken,
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return fetchResult{Status: LinkOK, StatusCode: resp.StatusCode}
}

func (c *Checker) request(method greq.Method, link string) *greq.Request {
	req := greq.NewRequest(method, link).
		WithClient(c.opts.Client).
		WithLogger(c.opts.Logger).
		WithMetrics(c.opts.Metrics).
		WithRateLimiter(c.limiter)
	if c.opts.Timeout > 0 {
		req = req.WithTimeout(c.opts.Timeout)
	}
	if c.opts.Retry != nil {
		req = req.WithRetry(*c.opts.Retry)
	}
	return req
}

// headUnsupported reports statuses some servers return for HEAD although GET works.
func headUnsupported(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented
}

// existsBehindAuth treats responses that prove the resource exists as valid.
func existsBehindAuth(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusTooManyRequests
}
