package docsite

import (
	"path"
	"sort"
	"strings"
)

// introductionSection collects pages at the docs root.
const introductionSection = "Introduction"

// AutoSidebar groups pages into one section per top-level directory. Pages
// at the root go into an Introduction section placed first. Within a
// section the directory's index page comes first, the rest follow by path.
func AutoSidebar(pages []Page) []SidebarSection {
	groups := map[string][]Page{}
	var order []string
	for _, p := range pages {
		key := topDir(p.Path)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == "" || order[j] == "" {
			return order[i] == ""
		}
		return order[i] < order[j]
	})

	sections := make([]SidebarSection, 0, len(order))
	for _, key := range order {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			ii, ji := isIndex(members[i].Path), isIndex(members[j].Path)
			if ii != ji {
				return ii
			}
			return members[i].Path < members[j].Path
		})

		section := SidebarSection{Text: introductionSection, Items: make([]NavItem, 0, len(members))}
		if key != "" {
			section.Text = titleFromPath(key + "/index.md")
			for _, m := range members {
				if m.Path == key+"/index.md" {
					section.Text = m.Title
				}
			}
		}
		for _, m := range members {
			section.Items = append(section.Items, NavItem{Text: m.Title, Link: m.Link})
		}
		sections = append(sections, section)
	}
	return sections
}

func topDir(rel string) string {
	dir, _, ok := strings.Cut(rel, "/")
	if !ok {
		return ""
	}
	return dir
}

func isIndex(rel string) bool {
	return strings.TrimSuffix(path.Base(rel), path.Ext(rel)) == "index"
}
