package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/content"
	gh "github.com/leonardcser/folio-mcp/internal/github"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRevalidate is the webhook: POST /api/revalidate?secret=...&path=...
func (s *Server) handleRevalidate(c *gin.Context) {
	res, err := s.rv.Revalidate(c.Query("path"), c.Query("secret"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"revalidated": res.Revalidated,
		"path":        res.Path,
		"evicted":     res.Evicted,
		"now":         res.Now.UnixMilli(),
	})
}

func (s *Server) handleArticles(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		abortWithError(c, err)
		return
	}

	var articles []content.ArticlePreview
	switch tag := c.Query("tag"); {
	case tag != "":
		articles, err = s.content.ArticlesByTag(c.Request.Context(), tag)
	case limit > 0:
		articles, err = s.content.LatestArticles(c.Request.Context(), limit)
	default:
		articles, err = s.content.ListArticles(c.Request.Context())
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"count":    len(articles),
	})
}

func (s *Server) handleArticle(c *gin.Context) {
	article, err := s.content.RenderArticle(c.Request.Context(), c.Param("slug"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleRepos(c *gin.Context) {
	top, err := queryInt(c, "top")
	if err != nil {
		abortWithError(c, err)
		return
	}

	var repos []*gh.Repository
	if top > 0 {
		repos, err = s.content.TopRepositories(c.Request.Context(), top)
	} else {
		repos, err = s.content.ListRepositories(c.Request.Context())
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"repositories": repos,
		"count":        len(repos),
	})
}

func (s *Server) handleRepo(c *gin.Context) {
	repo, err := s.content.GetRepository(c.Request.Context(), c.Param("owner"), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (s *Server) handleReadme(c *gin.Context) {
	ctx := c.Request.Context()
	owner, name := c.Param("owner"), c.Param("name")

	md, err := s.content.GetReadme(ctx, owner, name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	doc, err := s.content.RenderReadme(ctx, owner, name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"markdown": md,
		"html":     doc.HTML,
	})
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		err := errors.Newf(errors.CodeInvalidInput, "%s must be a non-negative integer", name)
		return 0, errors.WithContext(err, "value", raw)
	}
	return n, nil
}
