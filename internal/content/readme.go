package content

import (
	"path"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/jmgilman/go/errors"
)

// NoReadme stands in for a repository without a README.
const NoReadme = "# No README found\n\nThis repository does not have a README file."

// readmeMarkdown normalizes a README to markdown. HTML READMEs are
// converted; every other format is passed through.
func readmeMarkdown(name, text string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			err = errors.Wrapf(err, errors.CodeSchemaFailed, "failed to convert %s to markdown", name)
			return "", errors.WithContext(err, "file", name)
		}
		return md, nil
	default:
		return text, nil
	}
}
