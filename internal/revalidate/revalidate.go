// Package revalidate evicts cached content when the site's source changes.
// Requests name a site path; the path decides which cache keys go.
package revalidate

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/cache"
	"github.com/leonardcser/folio-mcp/internal/content"
	"github.com/leonardcser/folio-mcp/internal/logger"
)

// Result reports a completed revalidation.
type Result struct {
	Revalidated bool      `json:"revalidated"`
	Path        string    `json:"path"`
	Evicted     int       `json:"evicted"`
	Now         time.Time `json:"now"`
}

// Targets is what a path evicts: exact keys, key prefixes, or everything.
type Targets struct {
	All      bool
	Keys     []string
	Prefixes []string
}

// Handler checks the shared secret and evicts cache entries.
type Handler struct {
	cache  cache.Invalidator
	secret string
	user   string
	now    func() time.Time
}

// New returns a Handler. An empty secret accepts every request. user owns
// the repositories shown under /portfolio.
func New(inv cache.Invalidator, secret, user string) *Handler {
	return &Handler{cache: inv, secret: secret, user: user, now: time.Now}
}

// Authorize checks secret against the configured one. It fails with
// CodeUnauthorized on a mismatch and accepts anything when no secret is
// configured.
func (h *Handler) Authorize(secret string) error {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		return errors.New(errors.CodeUnauthorized, "Invalid token")
	}
	return nil
}

// Revalidate evicts the entries behind path. It fails with CodeUnauthorized
// when a secret is configured and does not match, and with
// CodeInvalidInput when path is empty.
func (h *Handler) Revalidate(path, secret string) (*Result, error) {
	if err := h.Authorize(secret); err != nil {
		logger.Warnf("revalidate: rejected request for %q: invalid token", path)
		return nil, err
	}
	if path == "" {
		return nil, errors.New(errors.CodeInvalidInput, "Missing path parameter")
	}

	t := TargetsFor(path, h.user)
	evicted := 0
	if t.All {
		evicted = h.cache.Clear()
	} else {
		for _, k := range t.Keys {
			if h.cache.Invalidate(k) {
				evicted++
			}
		}
		for _, p := range t.Prefixes {
			evicted += h.cache.InvalidatePrefix(p)
		}
	}
	logger.Infof("revalidate: %s evicted %d entries", path, evicted)
	return &Result{Revalidated: true, Path: path, Evicted: evicted, Now: h.now()}, nil
}

// TargetsFor maps a site path to the cache entries that back it. Unknown
// paths evict everything.
func TargetsFor(path, user string) Targets {
	p := path
	if p != "/" {
		p = strings.TrimRight(p, "/")
	}
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")

	switch {
	case p == "/" || p == "":
		return Targets{All: true}
	case len(segs) == 1 && segs[0] == "articles":
		return Targets{Prefixes: []string{content.PrefixArticles, content.PrefixArticle}}
	case len(segs) == 2 && segs[0] == "articles":
		return Targets{
			Keys:     []string{content.KeyArticleList},
			Prefixes: []string{content.ArticlePrefix(segs[1])},
		}
	case len(segs) == 1 && segs[0] == "portfolio":
		return Targets{Prefixes: []string{content.PrefixRepoList, content.PrefixRepo, content.PrefixReadme}}
	case len(segs) == 2 && segs[0] == "portfolio":
		return Targets{Keys: []string{content.RepoKey(user, segs[1]), content.ReadmeKey(user, segs[1])}}
	default:
		return Targets{All: true}
	}
}
