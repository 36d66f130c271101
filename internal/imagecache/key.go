package imagecache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// Namespaces used as object key prefixes.
const (
	NamespacePreviews = "previews"
	NamespaceUploads  = "uploads"
)

// Ext is appended to every cache key. Stored bytes are always JPEG.
const Ext = ".jpg"

// Key identifies one cached image in both tiers.
type Key struct {
	Namespace string
	Hash      string
}

// Name is the file name shared by the disk and remote tiers.
func (k Key) Name() string {
	return k.Hash + Ext
}

// ObjectKey is the key inside the bucket.
func (k Key) ObjectKey() string {
	return k.Namespace + "/" + k.Name()
}

func (k Key) String() string {
	return k.ObjectKey()
}

// NormalizeURL adds an https scheme when raw has none. The result is what
// gets fetched; the query string is kept.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !hasScheme(raw) {
		raw = "https://" + strings.TrimLeft(raw, "/")
	}
	return raw
}

// hasScheme reports whether raw starts with "<scheme>://". A "://" later in
// the path or query does not count.
func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i <= 0 {
		return false
	}
	for j, c := range raw[:i] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// CacheURL is NormalizeURL with the query and fragment removed and the host
// lowercased. It is idempotent.
func CacheURL(raw string) string {
	n := NormalizeURL(raw)
	u, err := url.Parse(n)
	if err != nil {
		if i := strings.IndexAny(n, "?#"); i >= 0 {
			n = n[:i]
		}
		return n
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// KeyForURL returns the key of the preview for raw.
func KeyForURL(raw string) Key {
	return Key{Namespace: NamespacePreviews, Hash: hashHex([]byte(CacheURL(raw)))}
}

// KeyForBytes returns a content key in namespace for data.
func KeyForBytes(namespace string, data []byte) Key {
	return Key{Namespace: namespace, Hash: hashHex(data)}
}

func hashHex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
