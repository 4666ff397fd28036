package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/folio-mcp/internal/content"
	gh "github.com/leonardcser/folio-mcp/internal/github"
)

const (
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

// ReposListHandler returns the MCP tool handler for the "repos-list" tool.
func ReposListHandler(c *content.Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		top := req.GetInt("top", 0)
		if top < 0 {
			return mcp.NewToolResultError("top must not be negative"), nil
		}

		var (
			repos []*gh.Repository
			err   error
		)
		if top > 0 {
			repos, err = c.TopRepositories(ctx, top)
		} else {
			repos, err = c.ListRepositories(ctx)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRepoList(repos)), nil
	}
}

// RepoGetHandler returns the MCP tool handler for the "repo-get" tool.
func RepoGetHandler(c *content.Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		owner := req.GetString("owner", c.User())

		repo, err := c.GetRepository(ctx, owner, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRepo(repo)), nil
	}
}

// ReadmeGetHandler returns the MCP tool handler for the "readme-get" tool.
func ReadmeGetHandler(c *content.Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		owner := req.GetString("owner", c.User())

		switch format := req.GetString("format", formatMarkdown); format {
		case formatMarkdown:
			md, err := c.GetReadme(ctx, owner, name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(md), nil
		case formatHTML:
			doc, err := c.RenderReadme(ctx, owner, name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(doc.HTML), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown format %q, must be markdown or html", format)), nil
		}
	}
}

func formatRepoList(repos []*gh.Repository) string {
	if len(repos) == 0 {
		return "No repositories."
	}
	var sb strings.Builder
	for i, r := range repos {
		sb.WriteString(fmt.Sprintf("%d. %s (★ %d)\n   %s", i+1, r.FullName, r.Stars, r.HTMLURL))
		if r.Description != "" {
			sb.WriteString("\n   ")
			sb.WriteString(r.Description)
		}
		if i < len(repos)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func formatRepo(r *gh.Repository) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(r.FullName)
	sb.WriteString("\n\n")
	if r.Description != "" {
		sb.WriteString(r.Description)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("- URL: %s\n", r.HTMLURL))
	if r.Homepage != "" {
		sb.WriteString(fmt.Sprintf("- Homepage: %s\n", r.Homepage))
	}
	if r.Language != "" {
		sb.WriteString(fmt.Sprintf("- Language: %s\n", r.Language))
	}
	if len(r.Topics) > 0 {
		sb.WriteString(fmt.Sprintf("- Topics: %s\n", strings.Join(r.Topics, ", ")))
	}
	sb.WriteString(fmt.Sprintf("- Stars: %d, forks: %d, open issues: %d\n", r.Stars, r.Forks, r.OpenIssues))
	sb.WriteString(fmt.Sprintf("- Default branch: %s\n", r.DefaultBranch))
	if !r.PushedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- Last push: %s\n", r.PushedAt.Format("2006-01-02")))
	}
	return sb.String()
}
