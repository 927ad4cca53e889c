// Package docsite holds the navigation configuration of the greq
// documentation site and the tooling around it: loading, validation,
// rendering for the site generator, page scanning and link checking.
package docsite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"

	"git.home.luguber.info/inful/greq"
)

// NavItem is a labelled link.
type NavItem struct {
	Text string `json:"text" yaml:"text" toml:"text"`
	Link string `json:"link" yaml:"link" toml:"link"`
}

// SidebarSection is a titled, ordered group of sidebar links.
type SidebarSection struct {
	Text      string    `json:"text" yaml:"text" toml:"text"`
	Collapsed bool      `json:"collapsed,omitempty" yaml:"collapsed,omitempty" toml:"collapsed,omitempty"`
	Items     []NavItem `json:"items" yaml:"items" toml:"items"`
}

// SocialLink points at an external profile. Icon is the generator's icon identifier.
type SocialLink struct {
	Icon string `json:"icon" yaml:"icon" toml:"icon"`
	Link string `json:"link" yaml:"link" toml:"link"`
}

// Site is the navigation configuration of the documentation site.
// It is read once and never mutated afterwards.
type Site struct {
	Title       string           `json:"title" yaml:"title" toml:"title"`
	Description string           `json:"description" yaml:"description" toml:"description"`
	Nav         []NavItem        `json:"nav" yaml:"nav" toml:"nav"`
	Sidebar     []SidebarSection `json:"sidebar" yaml:"sidebar" toml:"sidebar"`
	SocialLinks []SocialLink     `json:"socialLinks" yaml:"socialLinks" toml:"socialLinks"`
}

// LinkRef is a link together with where it appears.
type LinkRef struct {
	Source string
	Text   string
	Link   string
}

const (
	SourceNav     = "nav"
	SourceSocial  = "social"
	sidebarPrefix = "sidebar:"
)

// SidebarSource names the source of links in the given sidebar section.
func SidebarSource(section string) string {
	return sidebarPrefix + section
}

// Links returns every link of the site in document order.
func (s *Site) Links() []LinkRef {
	var refs []LinkRef
	for _, item := range s.Nav {
		refs = append(refs, LinkRef{Source: SourceNav, Text: item.Text, Link: item.Link})
	}
	for _, section := range s.Sidebar {
		for _, item := range section.Items {
			refs = append(refs, LinkRef{Source: SidebarSource(section.Text), Text: item.Text, Link: item.Link})
		}
	}
	for _, social := range s.SocialLinks {
		refs = append(refs, LinkRef{Source: SourceSocial, Text: social.Icon, Link: social.Link})
	}
	return refs
}

// Validate checks the site and reports every problem found as one config error.
func (s *Site) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(s.Title) == "" {
		result = multierror.Append(result, fmt.Errorf("title is required"))
	}
	for i, item := range s.Nav {
		if err := validateItem(item); err != nil {
			result = multierror.Append(result, fmt.Errorf("nav[%d]: %w", i, err))
		}
	}
	for i, section := range s.Sidebar {
		if strings.TrimSpace(section.Text) == "" {
			result = multierror.Append(result, fmt.Errorf("sidebar[%d]: section text is required", i))
		}
		for j, item := range section.Items {
			if err := validateItem(item); err != nil {
				result = multierror.Append(result, fmt.Errorf("sidebar[%d].items[%d]: %w", i, j, err))
			}
		}
	}
	for i, social := range s.SocialLinks {
		if strings.TrimSpace(social.Icon) == "" {
			result = multierror.Append(result, fmt.Errorf("socialLinks[%d]: icon is required", i))
		}
		if !isHTTPURL(social.Link) {
			result = multierror.Append(result, fmt.Errorf("socialLinks[%d]: link %q must be an absolute http(s) URL", i, social.Link))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return greq.NewError(greq.CategoryConfig, "invalid site navigation").
			WithCause(err).
			WithContext("problems", len(result.Errors)).
			Build()
	}
	return nil
}

func validateItem(item NavItem) error {
	if strings.TrimSpace(item.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if strings.TrimSpace(item.Link) == "" {
		return fmt.Errorf("link is required for %q", item.Text)
	}
	if _, err := url.Parse(item.Link); err != nil {
		return fmt.Errorf("link %q for %q: %w", item.Link, item.Text, err)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
