// Package githubtest provides an in-memory github.Provider for tests.
package githubtest

import (
	"context"
	"encoding/base64"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/jmgilman/go/errors"

	gh "github.com/leonardcser/folio-mcp/internal/github"
)

// Provider is an in-memory repository host. Files are keyed by
// "owner/repo" and then by path. Err hooks let tests inject failures.
type Provider struct {
	mu      sync.Mutex
	files   map[string]map[string]string
	readmes map[string]*gh.File
	repos   map[string]*gh.Repository
	calls   map[string]int

	// Err, if set, is consulted before every call. A non-nil return is
	// returned from the call.
	Err func(op, key string) error
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{
		files:   make(map[string]map[string]string),
		readmes: make(map[string]*gh.File),
		repos:   make(map[string]*gh.Repository),
		calls:   make(map[string]int),
	}
}

// AddFile stores a text file; it is served base64 encoded.
func (p *Provider) AddFile(owner, repo, filePath, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := owner + "/" + repo
	if p.files[k] == nil {
		p.files[k] = make(map[string]string)
	}
	p.files[k][strings.TrimPrefix(filePath, "/")] = content
}

// SetReadme stores the README served for owner/repo.
func (p *Provider) SetReadme(owner, repo, name, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readmes[owner+"/"+repo] = encode(name, name, content)
}

// AddRepository registers repository metadata.
func (p *Provider) AddRepository(r *gh.Repository) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repos[r.Owner+"/"+r.Name] = r
}

// Calls returns how many times op was invoked for key, where key is the
// path, "owner/repo" or user depending on op.
func (p *Provider) Calls(op, key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op+" "+key]
}

func (p *Provider) begin(op, key string) error {
	p.mu.Lock()
	p.calls[op+" "+key]++
	hook := p.Err
	p.mu.Unlock()
	if hook != nil {
		return hook(op, key)
	}
	return nil
}

// ListDirectory implements gh.Provider.
func (p *Provider) ListDirectory(_ context.Context, owner, repo, dir, _ string) ([]gh.DirEntry, error) {
	if err := p.begin("ListDirectory", dir); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	files, ok := p.files[owner+"/"+repo]
	if !ok {
		return nil, gh.NewNotFoundError("repository", owner+"/"+repo)
	}
	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}

	seen := make(map[string]gh.DirEntry)
	for fp := range files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		e := gh.DirEntry{Name: name, Path: prefix + name, Type: gh.EntryFile, Size: len(files[fp])}
		if isDir {
			e.Type = gh.EntryDir
			e.Size = 0
		}
		seen[name] = e
	}
	if len(seen) == 0 && dir != "" {
		return nil, gh.NewNotFoundError("directory", dir)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]gh.DirEntry, 0, len(names))
	for _, n := range names {
		out = append(out, seen[n])
	}
	return out, nil
}

// GetFile implements gh.Provider.
func (p *Provider) GetFile(_ context.Context, owner, repo, filePath, _ string) (*gh.File, error) {
	if err := p.begin("GetFile", filePath); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[owner+"/"+repo][filePath]
	if !ok {
		return nil, gh.NewNotFoundError("file", filePath)
	}
	return encode(path.Base(filePath), filePath, content), nil
}

// GetReadme implements gh.Provider.
func (p *Provider) GetReadme(_ context.Context, owner, repo string) (*gh.File, error) {
	key := owner + "/" + repo
	if err := p.begin("GetReadme", key); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.readmes[key]
	if !ok {
		return nil, gh.NewNotFoundError("readme", key)
	}
	cp := *f
	return &cp, nil
}

// GetRepository implements gh.Provider.
func (p *Provider) GetRepository(_ context.Context, owner, repo string) (*gh.Repository, error) {
	key := owner + "/" + repo
	if err := p.begin("GetRepository", key); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.repos[key]
	if !ok {
		return nil, gh.NewNotFoundError("repository", key)
	}
	cp := *r
	return &cp, nil
}

// ListRepositories implements gh.Provider.
func (p *Provider) ListRepositories(_ context.Context, user string) ([]*gh.Repository, error) {
	if err := p.begin("ListRepositories", user); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*gh.Repository
	for _, r := range p.repos {
		if r.Owner == user {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func encode(name, filePath, content string) *gh.File {
	return &gh.File{
		Name:     name,
		Path:     filePath,
		Size:     len(content),
		Encoding: "base64",
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
	}
}

// RateLimited returns an error coded as upstream rate limiting.
func RateLimited() error {
	return errors.New(errors.CodeRateLimit, "API rate limit exceeded")
}

var _ gh.Provider = (*Provider)(nil)
