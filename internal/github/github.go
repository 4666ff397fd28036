// Package github describes the slice of the GitHub API the content pipeline
// consumes: directory listings, file contents, READMEs and repository
// records. Implementations live in subpackages (sdk for go-github).
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
)

// Provider defines the read-only operations the content pipeline needs from
// the upstream host.
//
// Implementations return errors from github.com/jmgilman/go/errors so callers
// can branch on errors.GetCode: CodeNotFound for missing paths, CodeRateLimit
// for throttling, CodeNetwork for transport and 5xx failures.
type Provider interface {
	// ListDirectory returns the entries of the directory at path ("" is the
	// repository root) on ref. An empty ref means the default branch.
	ListDirectory(ctx context.Context, owner, repo, path, ref string) ([]DirEntry, error)

	// GetFile returns the file at path on ref with its content still in the
	// transport encoding. Returns CodeInvalidInput if path is a directory.
	GetFile(ctx context.Context, owner, repo, path, ref string) (*File, error)

	// GetReadme returns the preferred README of a repository.
	GetReadme(ctx context.Context, owner, repo string) (*File, error)

	// GetRepository returns repository metadata.
	GetRepository(ctx context.Context, owner, repo string) (*Repository, error)

	// ListRepositories lists every repository owned by user, most recently
	// updated first.
	ListRepositories(ctx context.Context, user string) ([]*Repository, error)
}

// EntryType is the kind of a directory entry.
type EntryType string

const (
	EntryFile    EntryType = "file"
	EntryDir     EntryType = "dir"
	EntrySymlink EntryType = "symlink"
	EntrySubmod  EntryType = "submodule"
)

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Type EntryType `json:"type"`
	Size int       `json:"size"`
}

// File is a file as served by the contents API.
type File struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Text decodes the file content into a string. Base64 payloads may contain
// line breaks, as the API wraps them.
func (f *File) Text() (string, error) {
	if f == nil {
		return "", errors.New(errors.CodeInvalidInput, "nil file")
	}
	switch strings.ToLower(f.Encoding) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' {
				return -1
			}
			return r
		}, f.Content)
		b, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return "", errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("failed to decode %s", f.Path)),
				"path", f.Path)
		}
		return string(b), nil
	case "", "utf-8", "none":
		return f.Content, nil
	default:
		err := errors.Newf(errors.CodeInvalidInput, "unsupported content encoding %q", f.Encoding)
		return "", errors.WithContext(err, "path", f.Path)
	}
}

// Repository is read-only upstream project metadata.
type Repository struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	Homepage      string    `json:"homepage,omitempty"`
	Language      string    `json:"language,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	Watchers      int       `json:"watchers_count"`
	OpenIssues    int       `json:"open_issues_count"`
	DefaultBranch string    `json:"default_branch"`
	Archived      bool      `json:"archived"`
	Fork          bool      `json:"fork"`
	Private       bool      `json:"private"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
}
