package markdown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/folio-mcp/internal/chart"
	"github.com/leonardcser/folio-mcp/internal/logger"
)

// includeRE matches a chart fence whose whole body is one @include
// directive. Whitespace around the directive is flexible.
var includeRE = regexp.MustCompile("```chart\\s*@include\\s+(\\S+)\\s*```")

// maxConcurrentIncludes bounds upstream fetches per document.
const maxConcurrentIncludes = 4

// FileLoader fetches a file stored next to a document.
type FileLoader interface {
	GetArticleFile(ctx context.Context, slug, relPath string) (string, error)
}

// FileLoaderFunc adapts a function to FileLoader.
type FileLoaderFunc func(ctx context.Context, slug, relPath string) (string, error)

func (f FileLoaderFunc) GetArticleFile(ctx context.Context, slug, relPath string) (string, error) {
	return f(ctx, slug, relPath)
}

// Directive is one @include occurrence in a document.
type Directive struct {
	Start, End int
	Path       string
}

// FindIncludes returns every include directive in doc in document order.
func FindIncludes(doc string) []Directive {
	matches := includeRE.FindAllStringSubmatchIndex(doc, -1)
	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		out = append(out, Directive{Start: m[0], End: m[1], Path: doc[m[2]:m[3]]})
	}
	return out
}

// ResolveIncludes replaces each chart include directive with a json fence
// holding the referenced chart data. A directive that cannot be resolved is
// replaced by a visible error fence instead; one bad include never fails the
// document. Directives are fetched concurrently.
func ResolveIncludes(ctx context.Context, loader FileLoader, doc, slug string) string {
	directives := FindIncludes(doc)
	if len(directives) == 0 {
		return doc
	}
	logger.Debugf("markdown: resolving %d chart includes for %s", len(directives), slug)

	replacements := make([]string, len(directives))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentIncludes)
	for i, d := range directives {
		g.Go(func() error {
			block, err := resolveInclude(gctx, loader, slug, d.Path)
			if err != nil {
				logger.Warnf("markdown: chart include %s/%s failed: %v", slug, d.Path, err)
				block = errorFence(d.Path, err)
			}
			replacements[i] = block
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.Grow(len(doc))
	last := 0
	for i, d := range directives {
		b.WriteString(doc[last:d.Start])
		b.WriteString(replacements[i])
		last = d.End
	}
	b.WriteString(doc[last:])
	return b.String()
}

func resolveInclude(ctx context.Context, loader FileLoader, slug, relPath string) (string, error) {
	clean, err := CleanRelPath(relPath)
	if err != nil {
		return "", err
	}
	raw, err := loader.GetArticleFile(ctx, slug, clean)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			return "", errors.Wrapf(err, errors.CodeNotFound, "Chart file not found: %s", relPath)
		}
		return "", err
	}
	if _, err := chart.Parse([]byte(raw)); err != nil {
		return "", errors.Wrapf(err, errors.CodeSchemaFailed, "Invalid chart data structure in %s", relPath)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace([]byte(raw)), "", "  "); err != nil {
		return "", errors.Wrapf(err, errors.CodeSchemaFailed, "Invalid chart data structure in %s", relPath)
	}
	return "```json\n" + pretty.String() + "\n```", nil
}

// CleanRelPath cleans a path relative to a document's directory and rejects
// paths that are absolute or leave the directory.
func CleanRelPath(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		err := errors.Newf(errors.CodeInvalidInput, "path %s escapes the article directory", p)
		return "", errors.WithContext(err, "path", p)
	}
	return clean, nil
}

func errorFence(relPath string, err error) string {
	return fmt.Sprintf("```\nChart Error: Failed to load %s\n%s\n```", relPath, reason(err))
}

// reason renders err for readers, without error-code prefixes.
func reason(err error) string {
	var parts []string
	for err != nil {
		var pe errors.PlatformError
		if !errors.As(err, &pe) {
			parts = append(parts, err.Error())
			break
		}
		parts = append(parts, pe.Message())
		err = pe.Unwrap()
	}
	return strings.Join(parts, ": ")
}
