package knowledge

import (
	"strings"

	"github.com/adrg/frontmatter"
)

// noteMeta holds the frontmatter fields AddDocument recognizes: doc_type
// and tags.
type noteMeta struct {
	DocType string   `yaml:"doc_type"`
	Tags    []string `yaml:"tags"`
}

// parseFrontMatter recovers an optional YAML header from content. It only
// ever returns metadata: the document's stored content and what gets
// chunked are never altered by this step, so a document with no
// frontmatter (ok == false) or malformed frontmatter behaves exactly as if
// this step didn't run.
func parseFrontMatter(content string) (meta noteMeta, ok bool) {
	if _, err := frontmatter.Parse(strings.NewReader(content), &meta); err != nil {
		return noteMeta{}, false
	}
	return meta, true
}
