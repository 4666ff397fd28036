package content

// Cache keys. Revalidation relies on the prefixes below to evict related
// records together.
const (
	KeyArticleList = "articles:list"

	PrefixArticles = "articles:"
	PrefixArticle  = "article:"
	PrefixRepoList = "repos:"
	PrefixRepo     = "repo:"
	PrefixReadme   = "readme:"
)

// ArticlePrefix covers every record cached for slug.
func ArticlePrefix(slug string) string { return PrefixArticle + slug + ":" }

func articleMetaKey(slug string) string { return ArticlePrefix(slug) + "meta" }

func articleBodyKey(slug string) string { return ArticlePrefix(slug) + "body" }

func articleHTMLKey(slug string) string { return ArticlePrefix(slug) + "html" }

func articleFileKey(slug, relPath string) string {
	return ArticlePrefix(slug) + "file:" + relPath
}

func repoListKey(user string) string { return PrefixRepoList + user }

// RepoKey is the cache key of a repository record.
func RepoKey(owner, name string) string { return PrefixRepo + owner + "/" + name }

// ReadmeKey is the cache key of a repository README.
func ReadmeKey(owner, name string) string { return PrefixReadme + owner + "/" + name }
