package docsite

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
)

// Page is a Markdown page found under the docs root.
type Page struct {
	// Path is relative to the docs root, slash separated.
	Path        string
	Link        string
	Title       string
	Fingerprint string
	// Links are the destinations of links in the page body.
	Links []string
}

// ScanPages walks root for Markdown files. Hidden directories and
// node_modules are skipped. Pages are returned sorted by path.
func ScanPages(root string) ([]Page, error) {
	var pages []Page
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		page, err := readPage(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, greq.WrapError(err, greq.CategoryConfig, "failed to scan docs").
			WithContext("path", root).
			Build()
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

func readPage(p, rel string) (Page, error) {
	content, err := os.ReadFile(p) // #nosec G304 -- walking the docs root
	if err != nil {
		return Page{}, err
	}

	fm, body, err := splitFrontMatter(content)
	if err != nil {
		return Page{}, greq.WrapError(err, greq.CategoryDecode, "invalid front matter").
			WithContext("path", rel).
			Build()
	}

	page := Page{
		Path:        rel,
		Link:        pageLink(rel),
		Fingerprint: mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(fm), "\n"), string(body)),
	}

	var fields struct {
		Title string `yaml:"title"`
	}
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &fields); err != nil {
			return Page{}, greq.WrapError(err, greq.CategoryDecode, "invalid front matter").
				WithContext("path", rel).
				Build()
		}
	}

	heading, links := scanBody(body)
	switch {
	case strings.TrimSpace(fields.Title) != "":
		page.Title = strings.TrimSpace(fields.Title)
	case heading != "":
		page.Title = heading
	default:
		page.Title = titleFromPath(rel)
	}
	page.Links = links
	return page, nil
}

var errMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// splitFrontMatter separates `---` delimited YAML front matter from the body.
func splitFrontMatter(content []byte) (frontMatter, body []byte, err error) {
	nl := "\n"
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		nl = "\r\n"
	}

	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, nil
	}
	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return nil, nil, errMissingClosingDelimiter
	}
	return content[start : start+idx+len(nl)], content[start+idx+len(closeSeq):], nil
}

// scanBody returns the text of the first level-1 heading and every link destination.
func scanBody(body []byte) (heading string, links []string) {
	root := goldmark.New().Parser().Parse(text.NewReader(body))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if node.Level == 1 && heading == "" {
				heading = strings.TrimSpace(nodeText(node, body))
			}
		case *gmast.Link:
			links = append(links, string(node.Destination))
		case *gmast.AutoLink:
			if node.AutoLinkType == gmast.AutoLinkURL {
				links = append(links, string(node.URL(body)))
			}
		}
		return gmast.WalkContinue, nil
	})
	return heading, links
}

func nodeText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return b.String()
}

// pageLink maps a page path to its site link: guide/intro.md -> /guide/intro,
// guide/index.md -> /guide/.
func pageLink(rel string) string {
	trimmed := strings.TrimSuffix(rel, path.Ext(rel))
	if path.Base(trimmed) == "index" {
		dir := path.Dir(trimmed)
		if dir == "." {
			return "/"
		}
		return "/" + dir + "/"
	}
	return "/" + trimmed
}

// titleFromPath humanises a file name: getting-started.md -> Getting Started.
// Index pages take their directory name.
func titleFromPath(rel string) string {
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if name == "index" {
		dir := path.Base(path.Dir(rel))
		if dir == "." || dir == "/" {
			return "Home"
		}
		name = dir
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(strings.TrimSpace(name))
}
