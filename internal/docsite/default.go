package docsite

// Default returns the navigation of the greq documentation site.
func Default() *Site {
	return &Site{
		Title:       "greq",
		Description: "A fluent HTTP request library for Go",
		Nav: []NavItem{
			{Text: "Home", Link: "/"},
			{Text: "Guide", Link: "/guide/getting-started"},
			{Text: "Authentication", Link: "/auth/"},
		},
		Sidebar: []SidebarSection{
			{
				Text: "Introduction",
				Items: []NavItem{
					{Text: "Getting started", Link: "/guide/getting-started"},
					{Text: "Installation", Link: "/guide/installation"},
				},
			},
			{
				Text: "Requests",
				Items: []NavItem{
					{Text: "Building requests", Link: "/guide/requests"},
					{Text: "Headers and query parameters", Link: "/guide/headers"},
					{Text: "Retries and rate limiting", Link: "/guide/retries"},
				},
			},
			{
				Text:      "Request bodies",
				Collapsed: true,
				Items: []NavItem{
					{Text: "JSON, XML and YAML", Link: "/bodies/encoded"},
					{Text: "Forms", Link: "/bodies/forms"},
					{Text: "Multipart", Link: "/bodies/multipart"},
				},
			},
			{
				Text:      "Authentication",
				Collapsed: true,
				Items: []NavItem{
					{Text: "Overview", Link: "/auth/"},
					{Text: "Basic and bearer", Link: "/auth/basic-bearer"},
					{Text: "JWT", Link: "/auth/jwt"},
					{Text: "OAuth2", Link: "/auth/oauth2"},
					{Text: "NTLM", Link: "/auth/ntlm"},
					{Text: "Client certificates", Link: "/auth/client-certificates"},
					{Text: "AWS Signature v4", Link: "/auth/aws"},
				},
			},
			{
				Text: "Responses",
				Items: []NavItem{
					{Text: "Reading bodies", Link: "/guide/responses"},
					{Text: "Errors", Link: "/guide/errors"},
				},
			},
			{
				Text: "CLI",
				Items: []NavItem{
					{Text: "greq command", Link: "/cli/"},
				},
			},
		},
		SocialLinks: []SocialLink{
			{Icon: "github", Link: "https://github.com/inful/greq"},
		},
	}
}
