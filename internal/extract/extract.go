// Package extract fetches a page and finds its title and best preview image.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is what Extract learned about one URL.
type Page struct {
	URL        string // final URL after redirects
	Title      string
	Image      string // absolute URL of the chosen image, or ""
	FromMeta   bool   // Image came from og:image / twitter:image
	Candidates []Candidate
}

// Extractor fetches HTML and extracts preview metadata.
type Extractor struct {
	client *http.Client
	opts   Options
}

// New creates an Extractor with a client built from opts.
func New(opts Options) *Extractor {
	return NewWithClient(nil, opts)
}

// NewWithClient creates an Extractor with a custom HTTP client.
// If client is nil, NewClient(opts) is used.
func NewWithClient(client *http.Client, opts Options) *Extractor {
	opts = opts.withDefaults()
	if client == nil {
		client = NewClient(opts)
	}
	return &Extractor{client: client, opts: opts}
}

// Client returns the underlying HTTP client.
func (e *Extractor) Client() *http.Client {
	return e.client
}

// Extract fetches rawURL and extracts its title and preview image.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := get(ctx, e.client, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", e.opts.UserAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, e.opts.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return ParseDocument(doc, resp.Request.URL), nil
}

// ParseDocument extracts title and image from an already parsed document.
// pageURL is where the document was fetched from; a <base href> overrides
// it for resolving relative references.
func ParseDocument(doc *goquery.Document, pageURL *url.URL) *Page {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	meta := metaTags(doc)
	page := &Page{
		URL:   pageURL.String(),
		Title: pageTitle(doc, meta, pageURL.Hostname()),
	}

	for _, name := range []string{"og:image", "og:image:url", "twitter:image", "twitter:image:src"} {
		raw := meta[name]
		if raw == "" {
			continue
		}
		abs, ok := resolve(base, raw)
		if !ok {
			continue
		}
		if IsLikelyLogo(abs, "") {
			slog.Debug("meta image looks like a logo", "tag", name, "image", abs)
			continue
		}
		page.Image = abs
		page.FromMeta = true
		return page
	}

	page.Candidates = collectCandidates(doc, base)
	page.Image = SelectBest(page.Candidates)
	return page
}

// metaTags maps lowercased property/name attributes to the first non-empty
// content seen.
func metaTags(doc *goquery.Document) map[string]string {
	tags := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		for _, attr := range []string{"property", "name"} {
			key := strings.ToLower(strings.TrimSpace(s.AttrOr(attr, "")))
			if key == "" {
				continue
			}
			if _, seen := tags[key]; !seen {
				tags[key] = content
			}
		}
	})
	return tags
}

// pageTitle applies og:title → twitter:title → <title> → <h1> (when the
// title is empty or just the hostname) → application-name.
func pageTitle(doc *goquery.Document, meta map[string]string, host string) string {
	title := meta["og:title"]
	if title == "" {
		title = meta["twitter:title"]
	}
	if title == "" {
		title = collapse(doc.Find("title").First().Text())
	}

	if title == "" || strings.EqualFold(title, host) {
		if h1 := collapse(doc.Find("h1").First().Text()); h1 != "" {
			title = h1
		} else if app := meta["application-name"]; app != "" {
			title = app
		}
	}
	return collapse(title)
}

var styleWidth = regexp.MustCompile(`width\s*:\s*(\d+)px`)
var styleHeight = regexp.MustCompile(`height\s*:\s*(\d+)px`)

func collectCandidates(doc *goquery.Document, base *url.URL) []Candidate {
	var out []Candidate
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src := firstAttr(s, "data-src", "data-lazy-src", "src")
		if set := firstAttr(s, "srcset", "data-srcset"); set != "" {
			if widest := widestSrcset(set); widest != "" {
				src = widest
			}
		}
		if src == "" {
			return
		}

		abs, ok := resolve(base, src)
		if !ok {
			return
		}
		if u, err := url.Parse(abs); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".svg") {
			return
		}

		style := s.AttrOr("style", "")
		out = append(out, Candidate{
			URL:    abs,
			Width:  max(leadingInt(s.AttrOr("width", "")), styleInt(styleWidth, style)),
			Height: max(leadingInt(s.AttrOr("height", "")), styleInt(styleHeight, style)),
			Alt:    s.AttrOr("alt", ""),
			Class:  s.AttrOr("class", ""),
			ID:     s.AttrOr("id", ""),
			Index:  i,
		})
	})
	return out
}

// widestSrcset returns the URL of the entry with the largest "Nw"
// descriptor, or "" if no entry has one.
func widestSrcset(set string) string {
	var best string
	maxW := 0
	for _, item := range strings.Split(set, ",") {
		fields := strings.Fields(item)
		if len(fields) < 2 || !strings.HasSuffix(fields[1], "w") {
			continue
		}
		w, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		if err != nil {
			continue
		}
		if w > maxW {
			maxW = w
			best = fields[0]
		}
	}
	return best
}

// resolve turns ref into an absolute http(s) URL against base. Data URIs
// and unparsable references are rejected.
func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(s.AttrOr(n, "")); v != "" {
			return v
		}
	}
	return ""
}

// leadingInt parses the leading digits of s ("800px" → 800), 0 if none.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func styleInt(re *regexp.Regexp, style string) int {
	if m := re.FindStringSubmatch(style); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
