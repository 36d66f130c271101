package preview

import (
	"net/url"
	"strings"
)

// Override replaces what extraction found for one host.
type Override struct {
	Host  string `koanf:"host"`
	Title string `koanf:"title"`
	Image string `koanf:"image"`
}

// Overrides is a host lookup table.
type Overrides []Override

// Match returns the override for rawURL's host. A host matches exactly or as
// a parent domain; the most specific match wins.
func (o Overrides) Match(rawURL string) (Override, bool) {
	if len(o) == 0 {
		return Override{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Override{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Override{}, false
	}

	var best Override
	found := false
	for _, ov := range o {
		h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(ov.Host), "."))
		if h == "" {
			continue
		}
		if host != h && !strings.HasSuffix(host, "."+h) {
			continue
		}
		if !found || len(h) > len(best.Host) {
			best = ov
			best.Host = h
			found = true
		}
	}
	return best, found
}
