package docsite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
)

// Render writes site in the given output format.
func Render(w io.Writer, site *Site, format Format) error {
	switch format {
	case FormatVitePress:
		return RenderVitePress(w, site)
	case FormatHugo:
		return RenderHugo(w, site)
	case FormatJSON:
		return renderJSON(w, site)
	case FormatYAML:
		return renderYAML(w, site)
	default:
		return greq.NewError(greq.CategoryConfig, fmt.Sprintf("unsupported output format %q", format)).
			WithContext("format", string(format)).
			Build()
	}
}

// vitepressConfig mirrors the object passed to defineConfig.
type vitepressConfig struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ThemeConfig vitepressTheme `json:"themeConfig"`
}

type vitepressTheme struct {
	Nav         []NavItem        `json:"nav"`
	Sidebar     []SidebarSection `json:"sidebar"`
	SocialLinks []SocialLink     `json:"socialLinks"`
}

// RenderVitePress writes a VitePress config module exporting the site.
func RenderVitePress(w io.Writer, site *Site) error {
	cfg := vitepressConfig{
		Title:       site.Title,
		Description: site.Description,
		ThemeConfig: vitepressTheme{
			Nav:         nonNil(site.Nav),
			Sidebar:     sidebarNonNil(site.Sidebar),
			SocialLinks: nonNil(site.SocialLinks),
		},
	}

	body, err := marshalIndent(cfg)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("import { defineConfig } from 'vitepress'\n\n")
	buf.WriteString("export default defineConfig(")
	buf.Write(body)
	buf.WriteString(")\n")
	_, err = w.Write(buf.Bytes())
	return err
}

const menuWeightStep = 10

// RenderHugo writes the site as a hugo.yaml fragment: title, description
// and social links under params, nav as menu.main and the sidebar as a
// two-level menu.sidebar.
func RenderHugo(w io.Writer, site *Site) error {
	main := make([]map[string]any, 0, len(site.Nav))
	for i, item := range site.Nav {
		main = append(main, map[string]any{
			"name":   item.Text,
			"url":    item.Link,
			"weight": (i + 1) * menuWeightStep,
		})
	}

	sidebar := make([]map[string]any, 0)
	used := make(map[string]bool, len(site.Sidebar))
	for i, section := range site.Sidebar {
		id := slug(section.Text)
		if id == "" {
			id = fmt.Sprintf("section-%d", i+1)
		}
		// Section titles may repeat; children find their parent by identifier.
		for base, n := id, 2; used[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		used[id] = true
		sidebar = append(sidebar, map[string]any{
			"identifier": id,
			"name":       section.Text,
			"weight":     (i + 1) * menuWeightStep,
			"params":     map[string]any{"collapsed": section.Collapsed},
		})
		for j, item := range section.Items {
			sidebar = append(sidebar, map[string]any{
				"name":   item.Text,
				"url":    item.Link,
				"parent": id,
				"weight": (j + 1) * menuWeightStep,
			})
		}
	}

	social := make([]map[string]any, 0, len(site.SocialLinks))
	for _, s := range site.SocialLinks {
		social = append(social, map[string]any{"icon": s.Icon, "url": s.Link})
	}

	root := map[string]any{
		"title": site.Title,
		"params": map[string]any{
			"description": site.Description,
			"social":      social,
		},
		"menu": map[string]any{
			"main":    main,
			"sidebar": sidebar,
		},
	}

	data, err := yaml.Marshal(root)
	if err != nil {
		return greq.WrapError(err, greq.CategoryEncoding, "failed to marshal Hugo config").Build()
	}
	_, err = w.Write(data)
	return err
}

func renderJSON(w io.Writer, site *Site) error {
	out := *site
	out.Nav = nonNil(site.Nav)
	out.Sidebar = sidebarNonNil(site.Sidebar)
	out.SocialLinks = nonNil(site.SocialLinks)

	data, err := marshalIndent(out)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func renderYAML(w io.Writer, site *Site) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(site); err != nil {
		return greq.WrapError(err, greq.CategoryEncoding, "failed to marshal navigation").Build()
	}
	return enc.Close()
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, greq.WrapError(err, greq.CategoryEncoding, "failed to marshal navigation").Build()
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func sidebarNonNil(sections []SidebarSection) []SidebarSection {
	out := make([]SidebarSection, 0, len(sections))
	for _, s := range sections {
		s.Items = nonNil(s.Items)
		out = append(out, s)
	}
	return out
}

// slug lowercases s and joins its letter and digit runs with dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
