// Package sdk implements the content Provider on top of the go-github SDK.
package sdk

import (
	"context"
	"net/http"

	"github.com/google/go-github/v67/github"
	"github.com/jmgilman/go/errors"

	gh "github.com/leonardcser/folio-mcp/internal/github"
)

// SDKProvider implements gh.Provider using the go-github SDK.
type SDKProvider struct {
	client *github.Client
}

// config holds configuration for SDKProvider.
type config struct {
	client     *github.Client
	httpClient *http.Client
	token      string
	baseURL    string
}

// Option configures the SDK provider.
type Option func(*config) error

// WithToken sets the authentication token for the SDK provider.
func WithToken(token string) Option {
	return func(cfg *config) error {
		if token == "" {
			err := errors.New(errors.CodeInvalidInput, "token cannot be empty")
			return errors.WithContext(err, "field", "token")
		}
		cfg.token = token
		return nil
	}
}

// WithClient sets a fully configured go-github client.
func WithClient(client *github.Client) Option {
	return func(cfg *config) error {
		if client == nil {
			err := errors.New(errors.CodeInvalidInput, "client cannot be nil")
			return errors.WithContext(err, "field", "client")
		}
		cfg.client = client
		return nil
	}
}

// WithHTTPClient sets the HTTP client used when no go-github client is given.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *config) error {
		cfg.httpClient = hc
		return nil
	}
}

// WithBaseURL points the provider at a different API root, such as a GitHub
// Enterprise instance or a test server. The URL must end with a slash.
func WithBaseURL(baseURL string) Option {
	return func(cfg *config) error {
		cfg.baseURL = baseURL
		return nil
	}
}

// NewSDKProvider creates a provider using the GitHub SDK. Either a token or a
// client must be supplied.
func NewSDKProvider(opts ...Option) (*SDKProvider, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.client == nil {
		if cfg.token == "" {
			err := errors.New(errors.CodeInvalidInput, "either token or client must be provided")
			return nil, errors.WithContext(err, "field", "token or client")
		}
		cfg.client = github.NewClient(cfg.httpClient).WithAuthToken(cfg.token)
	}

	if cfg.baseURL != "" {
		u, err := cfg.client.BaseURL.Parse(cfg.baseURL)
		if err != nil {
			return nil, errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidConfig, "invalid base URL"),
				"base_url", cfg.baseURL)
		}
		cfg.client.BaseURL = u
	}

	return &SDKProvider{client: cfg.client}, nil
}

// ListDirectory returns the entries of a directory.
func (s *SDKProvider) ListDirectory(ctx context.Context, owner, repo, path, ref string) ([]gh.DirEntry, error) {
	file, dir, resp, err := s.client.Repositories.GetContents(ctx, owner, repo, path, contentOpts(ref))
	if err != nil {
		return nil, s.wrapError(err, resp, "failed to list directory "+displayPath(path))
	}
	if file != nil && dir == nil {
		err := errors.Newf(errors.CodeInvalidInput, "%s is a file, not a directory", displayPath(path))
		return nil, errors.WithContext(err, "path", path)
	}

	entries := make([]gh.DirEntry, 0, len(dir))
	for _, c := range dir {
		entries = append(entries, gh.DirEntry{
			Name: c.GetName(),
			Path: c.GetPath(),
			Type: gh.EntryType(c.GetType()),
			Size: c.GetSize(),
		})
	}
	return entries, nil
}

// GetFile returns a single file with its content still encoded.
func (s *SDKProvider) GetFile(ctx context.Context, owner, repo, path, ref string) (*gh.File, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, owner, repo, path, contentOpts(ref))
	if err != nil {
		return nil, s.wrapError(err, resp, "failed to get file "+path)
	}
	if file == nil || file.GetType() != "file" {
		err := errors.Newf(errors.CodeInvalidInput, "%s is not a file", path)
		return nil, errors.WithContext(err, "path", path)
	}
	return convertFile(file), nil
}

// GetReadme returns the preferred README of a repository.
func (s *SDKProvider) GetReadme(ctx context.Context, owner, repo string) (*gh.File, error) {
	file, resp, err := s.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return nil, s.wrapError(err, resp, "failed to get readme")
	}
	return convertFile(file), nil
}

// GetRepository retrieves repository information.
func (s *SDKProvider) GetRepository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	r, resp, err := s.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, s.wrapError(err, resp, "failed to get repository")
	}
	return convertRepository(r), nil
}

// ListRepositories lists every repository of a user, following pagination.
func (s *SDKProvider) ListRepositories(ctx context.Context, user string) ([]*gh.Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []*gh.Repository
	for {
		repos, resp, err := s.client.Repositories.ListByUser(ctx, user, opts)
		if err != nil {
			return nil, s.wrapError(err, resp, "failed to list repositories")
		}
		for _, r := range repos {
			result = append(result, convertRepository(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

func contentOpts(ref string) *github.RepositoryContentGetOptions {
	if ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: ref}
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func convertFile(c *github.RepositoryContent) *gh.File {
	f := &gh.File{
		Name:     c.GetName(),
		Path:     c.GetPath(),
		SHA:      c.GetSHA(),
		Size:     c.GetSize(),
		Encoding: c.GetEncoding(),
	}
	// GetContent would decode; the pipeline decodes itself.
	if c.Content != nil {
		f.Content = *c.Content
	}
	return f
}

// convertRepository converts a go-github Repository to gh.Repository.
func convertRepository(repo *github.Repository) *gh.Repository {
	if repo == nil {
		return nil
	}

	data := &gh.Repository{
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		HTMLURL:       repo.GetHTMLURL(),
		Homepage:      repo.GetHomepage(),
		Language:      repo.GetLanguage(),
		Topics:        repo.Topics,
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		Watchers:      repo.GetWatchersCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		DefaultBranch: repo.GetDefaultBranch(),
		Archived:      repo.GetArchived(),
		Fork:          repo.GetFork(),
		Private:       repo.GetPrivate(),
	}

	if owner := repo.GetOwner(); owner != nil {
		data.Owner = owner.GetLogin()
	}

	if t := repo.GetCreatedAt(); !t.IsZero() {
		data.CreatedAt = t.Time
	}
	if t := repo.GetUpdatedAt(); !t.IsZero() {
		data.UpdatedAt = t.Time
	}
	if t := repo.GetPushedAt(); !t.IsZero() {
		data.PushedAt = t.Time
	}

	return data
}

// wrapError maps go-github failures onto platform error codes.
func (s *SDKProvider) wrapError(err error, resp *github.Response, message string) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return errors.Wrap(err, errors.CodeRateLimit, message)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		statusCode = ghErr.Response.StatusCode
	}

	if statusCode != 0 {
		return gh.WrapHTTPError(err, statusCode, message)
	}

	// Fallback to network error for unknown errors
	return errors.Wrap(err, errors.CodeNetwork, message)
}

// Compile-time interface check.
var _ gh.Provider = (*SDKProvider)(nil)
