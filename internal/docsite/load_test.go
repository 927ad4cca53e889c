package docsite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/greq"
)

const yamlNav = `title: T
description: D
nav:
  - text: Home
    link: /
sidebar:
  - text: Guide
    collapsed: true
    items:
      - text: Intro
        link: /intro
socialLinks:
  - icon: github
    link: https://github.com/x
`

const tomlNav = `title = "T"
description = "D"

[[nav]]
text = "Home"
link = "/"

[[sidebar]]
text = "Guide"
collapsed = true

[[sidebar.items]]
text = "Intro"
link = "/intro"

[[socialLinks]]
icon = "github"
link = "https://github.com/x"
`

const jsonNav = `{
  "title": "T",
  "description": "D",
  "nav": [{"text": "Home", "link": "/"}],
  "sidebar": [{"text": "Guide", "collapsed": true, "items": [{"text": "Intro", "link": "/intro"}]}],
  "socialLinks": [{"icon": "github", "link": "https://github.com/x"}]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"nav.yaml": yamlNav,
		"nav.yml":  yamlNav,
		"nav.toml": tomlNav,
		"nav.json": jsonNav,
	} {
		t.Run(name, func(t *testing.T) {
			site, err := Load(writeFile(t, dir, name, content))
			require.NoError(t, err)
			assert.Equal(t, sampleSite(), site)
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	p := writeFile(t, t.TempDir(), "nav.ini", "title=x")
	_, err := Load(p)
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryConfig))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	for format, data := range map[Format]string{
		FormatYAML: "title: T\nunknown: 1\n",
		FormatTOML: "title = \"T\"\nunknown = 1\n",
		FormatJSON: `{"title":"T","unknown":1}`,
	} {
		_, err := Parse([]byte(data), format)
		assert.Error(t, err, format)
	}
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, NormalizeFormat("YML"))
	assert.Equal(t, FormatVitePress, NormalizeFormat(" vitepress "))
	assert.Equal(t, FormatHugo, NormalizeFormat("hugo"))
	assert.Equal(t, Format(""), NormalizeFormat("xml"))
}
