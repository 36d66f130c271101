package extract

import (
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// FetchTitle is the lightweight title lookup used on cache hits. It reads at
// most 1 MB and stops at <body>.
func (e *Extractor) FetchTitle(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.TitleTimeout)
	defer cancel()

	resp, err := get(ctx, e.client, rawURL, "text/html", e.opts.UserAgent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isHTML(resp.Header.Get("Content-Type")) {
		return "", ErrNotHTML
	}
	return parseHeadTitle(io.LimitReader(resp.Body, titleBodySize)), nil
}

// parseHeadTitle scans the document head and returns og:title, else
// twitter:title, else the <title> text.
func parseHeadTitle(r io.Reader) string {
	z := html.NewTokenizer(r)
	var og, twitter, title string

	done := func() string {
		for _, t := range []string{og, twitter, title} {
			if t = collapse(t); t != "" {
				return t
			}
		}
		return ""
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			return done()

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := z.TagName()
			switch string(tn) {
			case "body":
				return done()
			case "title":
				if title == "" && z.Next() == html.TextToken {
					title = string(z.Text())
				}
			case "meta":
				if !hasAttr {
					continue
				}
				attrs := readAttrs(z)
				key := strings.ToLower(attrs["property"])
				if key == "" {
					key = strings.ToLower(attrs["name"])
				}
				switch key {
				case "og:title":
					if og == "" {
						og = attrs["content"]
					}
				case "twitter:title":
					if twitter == "" {
						twitter = attrs["content"]
					}
				}
			}
		}
	}
}

// readAttrs collects all attributes from the current tag token.
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		k := string(key)
		if k != "" {
			attrs[k] = string(val)
		}
		if !more {
			break
		}
	}
	return attrs
}
