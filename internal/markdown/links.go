package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// DefaultRawHost serves raw repository files.
const DefaultRawHost = "https://raw.githubusercontent.com"

// AssetBase locates the directory a document's relative assets live in.
type AssetBase struct {
	Host   string
	Owner  string
	Repo   string
	Branch string
	// Dir is the document's directory inside the repository, usually the
	// article slug. Empty for files at the repository root.
	Dir string
}

var schemeRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// IsRelative reports whether u needs rewriting: it has no scheme and does
// not start with a slash (which also covers protocol-relative URLs).
func IsRelative(u string) bool {
	if u == "" || strings.HasPrefix(u, "/") || strings.HasPrefix(u, "#") {
		return false
	}
	return !schemeRE.MatchString(u)
}

// Resolve turns a relative asset URL into an absolute raw-content URL.
// Absolute and root-relative URLs are returned unchanged.
func (b AssetBase) Resolve(u string) string {
	if !IsRelative(u) {
		return u
	}
	clean := u
	for strings.HasPrefix(clean, "./") {
		clean = clean[2:]
	}

	host := b.Host
	if host == "" {
		host = DefaultRawHost
	}
	branch := b.Branch
	if branch == "" {
		branch = "main"
	}

	parts := []string{strings.TrimSuffix(host, "/"), b.Owner, b.Repo, branch}
	if dir := strings.Trim(b.Dir, "/"); dir != "" {
		parts = append(parts, dir)
	}
	parts = append(parts, clean)
	return strings.Join(parts, "/")
}

var assetBaseKey = parser.NewContextKey()

// imageRewriter is an AST transformer that rewrites relative image
// destinations against the AssetBase stored in the parser context. It runs
// once per parse and visits each node once.
type imageRewriter struct{}

func (imageRewriter) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	base, ok := pc.Get(assetBaseKey).(AssetBase)
	if !ok {
		return
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			img.Destination = []byte(base.Resolve(string(img.Destination)))
		}
		return ast.WalkContinue, nil
	})
}
