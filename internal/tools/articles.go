package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/folio-mcp/internal/content"
	"github.com/leonardcser/folio-mcp/internal/markdown"
)

// ArticlesListHandler returns the MCP tool handler for the "articles-list" tool.
func ArticlesListHandler(c *content.Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		tag := req.GetString("tag", "")
		limit := req.GetInt("limit", 0)
		if limit < 0 {
			return mcp.NewToolResultError("limit must not be negative"), nil
		}

		var (
			articles []content.ArticlePreview
			err      error
		)
		if tag != "" {
			articles, err = c.ArticlesByTag(ctx, tag)
		} else {
			articles, err = c.ListArticles(ctx)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if limit > 0 && len(articles) > limit {
			articles = articles[:limit]
		}
		return mcp.NewToolResultText(formatArticleList(articles)), nil
	}
}

// ArticleGetHandler returns the MCP tool handler for the "article-get" tool.
func ArticleGetHandler(c *content.Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		slug, err := req.RequireString("slug")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format := req.GetString("format", formatMarkdown)

		switch format {
		case formatHTML:
			rendered, err := c.RenderArticle(ctx, slug)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(formatRenderedArticle(rendered)), nil
		case formatMarkdown:
			article, err := c.GetArticle(ctx, slug)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body := markdown.ResolveIncludes(ctx, c, article.Body, slug)
			return mcp.NewToolResultText(articleHeader(article.Metadata) + body), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown format %q, must be markdown or html", format)), nil
		}
	}
}

func formatArticleList(articles []content.ArticlePreview) string {
	if len(articles) == 0 {
		return "No articles."
	}
	var sb strings.Builder
	for i, a := range articles {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n   %s", i+1, a.Metadata.Title, a.Slug, a.Metadata.Date))
		if a.Metadata.Summary != "" {
			sb.WriteString("\n   ")
			sb.WriteString(a.Metadata.Summary)
		}
		if len(a.Metadata.Tags) > 0 {
			sb.WriteString("\n   tags: ")
			sb.WriteString(strings.Join(a.Metadata.Tags, ", "))
		}
		if i < len(articles)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func articleHeader(m content.Metadata) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(m.Title)
	sb.WriteString("\n\n")
	byline := m.Date
	if names := authorNames(m.Authors); names != "" {
		byline += " · " + names
	}
	sb.WriteString("*" + byline + "*\n\n")
	if m.Summary != "" {
		sb.WriteString("> ")
		sb.WriteString(m.Summary)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func formatRenderedArticle(r *content.RenderedArticle) string {
	var sb strings.Builder
	sb.WriteString(r.Document.HTML)
	if len(r.Document.Charts) > 0 {
		sb.WriteString("\n\n<!-- charts: ")
		kinds := make([]string, 0, len(r.Document.Charts))
		for _, s := range r.Document.Charts {
			kinds = append(kinds, s.String())
		}
		sb.WriteString(strings.Join(kinds, "; "))
		sb.WriteString(" -->")
	}
	for _, e := range r.Document.ChartErrors {
		sb.WriteString("\n<!-- chart error: ")
		sb.WriteString(e)
		sb.WriteString(" -->")
	}
	return sb.String()
}

func authorNames(authors []content.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
