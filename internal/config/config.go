// Package config loads server settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/content"
	"github.com/leonardcser/folio-mcp/internal/retry"
)

// Config is the full server configuration.
type Config struct {
	GitHubToken    string `env:"GITHUB_TOKEN,required,notEmpty"`
	GitHubUsername string `env:"GITHUB_USERNAME,required,notEmpty"`
	// ArticlesRepoURL names the articles repository, e.g.
	// https://github.com/owner/articles.
	ArticlesRepoURL string `env:"ARTICLES_REPO_URL,required,notEmpty"`
	ArticlesBranch  string `env:"ARTICLES_BRANCH"   envDefault:"main"`
	// RevalidationToken guards cache revalidation. Empty disables the check.
	RevalidationToken string `env:"REVALIDATION_TOKEN"`
	// GitHubAPIURL overrides the API endpoint, for GitHub Enterprise.
	GitHubAPIURL string `env:"GITHUB_API_URL"`

	HTTPAddr       string        `env:"FOLIO_HTTP_ADDR"`
	ControlSocket  string        `env:"FOLIO_CONTROL_SOCK"`
	CacheTTL       time.Duration `env:"FOLIO_CACHE_TTL"         envDefault:"30m"`
	RetryAttempts  int           `env:"FOLIO_RETRY_ATTEMPTS"    envDefault:"3"`
	RetryBaseDelay time.Duration `env:"FOLIO_RETRY_BASE_DELAY"  envDefault:"1s"`

	// Set from ArticlesRepoURL by Load.
	ArticlesOwner string
	ArticlesRepo  string
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environ, or from the process
// environment when environ is nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	var opts env.Options
	if environ != nil {
		opts.Environment = environ
	}
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse environment")
	}

	owner, repo, err := ParseRepoURL(cfg.ArticlesRepoURL)
	if err != nil {
		return nil, err
	}
	cfg.ArticlesOwner, cfg.ArticlesRepo = owner, repo

	if cfg.ControlSocket == "" {
		cfg.ControlSocket = DefaultControlSocket()
	}
	if cfg.CacheTTL <= 0 {
		return nil, invalid("FOLIO_CACHE_TTL", "must be positive")
	}
	if cfg.RetryAttempts < 1 {
		return nil, invalid("FOLIO_RETRY_ATTEMPTS", "must be at least 1")
	}
	if cfg.RetryBaseDelay <= 0 {
		return nil, invalid("FOLIO_RETRY_BASE_DELAY", "must be positive")
	}
	return &cfg, nil
}

var repoURLRE = regexp.MustCompile(`github\.com[/:]([^/]+)/([^/]+)`)

// ParseRepoURL extracts owner and repository from a GitHub URL. A trailing
// ".git" is dropped.
func ParseRepoURL(u string) (owner, repo string, err error) {
	m := repoURLRE.FindStringSubmatch(u)
	if m == nil {
		err := errors.Newf(errors.CodeInvalidConfig, "invalid GitHub repo URL: %s", u)
		return "", "", errors.WithContext(err, "url", u)
	}
	repo = strings.TrimSuffix(strings.TrimRight(m[2], "/"), ".git")
	return m[1], repo, nil
}

// DefaultControlSocket is the control socket path used when
// FOLIO_CONTROL_SOCK is unset.
func DefaultControlSocket() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "folio-mcp", "control.sock")
}

// Content returns the content client settings.
func (c *Config) Content() content.Config {
	return content.Config{
		Owner:  c.ArticlesOwner,
		Repo:   c.ArticlesRepo,
		Branch: c.ArticlesBranch,
		User:   c.GitHubUsername,
		Retry:  c.Retry(),
	}
}

// Retry returns the upstream retry policy.
func (c *Config) Retry() retry.Policy {
	return retry.Policy{MaxAttempts: c.RetryAttempts, BaseDelay: c.RetryBaseDelay}
}

func invalid(name, reason string) error {
	err := errors.Newf(errors.CodeInvalidConfig, "%s %s", name, reason)
	return errors.WithContext(err, "variable", name)
}
