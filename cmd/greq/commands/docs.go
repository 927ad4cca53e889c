package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/cli"
	"git.home.luguber.info/inful/greq/internal/config"
	"git.home.luguber.info/inful/greq/internal/docsite"
	"git.home.luguber.info/inful/greq/internal/logfields"
)

// DocsCmd groups the documentation site commands.
type DocsCmd struct {
	Nav     string `name:"nav" help:"Navigation file (.yaml, .toml or .json). Defaults to docs.nav, then the built-in navigation." type:"path"`
	DocsDir string `short:"d" name:"docs-dir" help:"Markdown docs directory. Defaults to docs.dir." type:"path"`

	Render  DocsRenderCmd  `cmd:"" help:"Render the site configuration for VitePress or Hugo"`
	Pages   DocsPagesCmd   `cmd:"" help:"List the Markdown pages of the docs directory"`
	Sidebar DocsSidebarCmd `cmd:"" help:"Print a sidebar derived from the docs directory"`
	Check   DocsCheckCmd   `cmd:"" help:"Check every navigation link"`
	Watch   DocsWatchCmd   `cmd:"" help:"Re-render the site configuration whenever the navigation or pages change"`
}

func (d *DocsCmd) navPath(cfg *config.Config) string {
	if d.Nav != "" {
		return d.Nav
	}
	return cfg.Docs.Nav
}

func (d *DocsCmd) docsDir(cfg *config.Config) string {
	if d.DocsDir != "" {
		return d.DocsDir
	}
	return cfg.Docs.Dir
}

// loadSite loads and validates the navigation, falling back to the
// built-in one when no file is configured.
func (d *DocsCmd) loadSite(cfg *config.Config) (*docsite.Site, error) {
	site := docsite.Default()
	if path := d.navPath(cfg); path != "" {
		var err error
		if site, err = docsite.Load(path); err != nil {
			return nil, err
		}
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}

func (d *DocsCmd) scanPages(cfg *config.Config) ([]docsite.Page, error) {
	dir := d.docsDir(cfg)
	if dir == "" {
		return nil, greq.NewError(greq.CategoryConfig, "no docs directory configured").
			WithContext("hint", "pass --docs-dir or set docs.dir").
			Build()
	}
	return docsite.ScanPages(dir)
}

// DocsRenderCmd renders the navigation for a site generator.
type DocsRenderCmd struct {
	Format      string `short:"f" name:"format" help:"Output format: vitepress, hugo, json or yaml. Defaults to docs.format."`
	Output      string `short:"o" name:"output" help:"Write to this file instead of stdout. Defaults to docs.output." type:"path"`
	AutoSidebar bool   `name:"auto-sidebar" help:"Derive the sidebar from the docs directory when the navigation has none."`
}

func (r *DocsRenderCmd) Run(parent *DocsCmd, g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}
	format, err := r.format(cfg)
	if err != nil {
		return err
	}
	output := r.Output
	if output == "" {
		output = cfg.Docs.Output
	}

	site, err := parent.loadSite(cfg)
	if err != nil {
		return err
	}
	if r.AutoSidebar && len(site.Sidebar) == 0 {
		pages, err := parent.scanPages(cfg)
		if err != nil {
			return err
		}
		site.Sidebar = docsite.AutoSidebar(pages)
	}

	if output == "" {
		return docsite.Render(g.Stdout, site, format)
	}
	if err := writeRendered(output, site, format); err != nil {
		return err
	}
	g.Logger.Info("Rendered site configuration", logfields.Path(output), logfields.Format(string(format)))
	return nil
}

func (r *DocsRenderCmd) format(cfg *config.Config) (docsite.Format, error) {
	raw := r.Format
	if raw == "" {
		raw = cfg.Docs.Format
	}
	format := docsite.NormalizeFormat(raw)
	switch format {
	case docsite.FormatVitePress, docsite.FormatHugo, docsite.FormatJSON, docsite.FormatYAML:
		return format, nil
	default:
		return "", greq.NewError(greq.CategoryValidation, "unsupported render format").
			WithContext("format", raw).
			Build()
	}
}

// writeRendered renders into memory, writes a temporary file next to path
// and renames it into place, so readers never see a partial file and a
// failed render leaves the previous output untouched.
func writeRendered(path string, site *docsite.Site, format docsite.Format) error {
	var buf bytes.Buffer
	if err := docsite.Render(&buf, site, format); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return greq.WrapError(err, greq.CategoryInternal, "failed to create output directory").
			WithContext("path", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return greq.WrapError(err, greq.CategoryInternal, "failed to create temporary file").
			WithContext("path", dir).
			Build()
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(buf.Bytes())
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return greq.WrapError(err, greq.CategoryInternal, "failed to write output").
			WithContext("path", path).
			Build()
	}
	return nil
}

// DocsPagesCmd lists the pages found in the docs directory.
type DocsPagesCmd struct{}

func (p *DocsPagesCmd) Run(parent *DocsCmd, g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}
	pages, err := parent.scanPages(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINK\tTITLE\tPATH")
	for _, page := range pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", page.Link, page.Title, page.Path)
	}
	return tw.Flush()
}

// DocsSidebarCmd prints the sidebar derived from the docs directory as YAML,
// ready to paste into a navigation file.
type DocsSidebarCmd struct{}

func (s *DocsSidebarCmd) Run(parent *DocsCmd, g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}
	pages, err := parent.scanPages(cfg)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(g.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"sidebar": docsite.AutoSidebar(pages)}); err != nil {
		return greq.WrapError(err, greq.CategoryEncoding, "failed to encode sidebar").Build()
	}
	return enc.Close()
}

// DocsCheckCmd verifies navigation links once, or periodically with --every.
type DocsCheckCmd struct {
	BaseURL   string        `name:"base-url" help:"Resolve relative links against this URL when no docs directory is set. Defaults to docs.base_url."`
	PageLinks bool          `name:"page-links" help:"Also check links found in page bodies."`
	Every     time.Duration `name:"every" help:"Repeat the check at this interval until interrupted. Defaults to docs.check.every."`
	All       bool          `name:"all" help:"Print every result, not only broken links."`
}

func (c *DocsCheckCmd) Run(parent *DocsCmd, g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}
	checker := docsite.NewChecker(c.checkerOptions(parent, cfg, g))
	load := func() (*docsite.Site, error) { return parent.loadSite(cfg) }

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	every := c.Every
	if every == 0 {
		every = cfg.CheckEvery()
	}
	if every > 0 {
		return c.runScheduled(ctx, every, checker, load, g)
	}

	site, err := load()
	if err != nil {
		return err
	}
	report, err := checker.Check(ctx, site)
	if err != nil {
		return err
	}
	c.printReport(g.Stdout, report)
	if !report.OK() {
		return cli.ErrBrokenLinks
	}
	return nil
}

func (c *DocsCheckCmd) checkerOptions(parent *DocsCmd, cfg *config.Config, g *Global) docsite.CheckerOptions {
	opts := docsite.DefaultCheckerOptions()
	opts.DocsDir = parent.docsDir(cfg)
	opts.BaseURL = c.BaseURL
	if opts.BaseURL == "" {
		opts.BaseURL = cfg.Docs.BaseURL
	}
	opts.PageLinks = c.PageLinks || cfg.Docs.Check.PageLinks
	opts.Concurrency = cfg.Docs.Check.Concurrency
	opts.RatePerSecond = cfg.Docs.Check.RequestsPerSecond
	opts.Timeout = cfg.CheckTimeout()
	opts.Client = cfg.HTTPClient()
	opts.Logger = g.Logger
	if policy := cfg.RetryPolicy(); policy.MaxRetries > 0 {
		opts.Retry = &policy
	}
	return opts
}

func (c *DocsCheckCmd) runScheduled(
	ctx context.Context,
	every time.Duration,
	checker *docsite.Checker,
	load func() (*docsite.Site, error),
	g *Global,
) error {
	scheduler, err := docsite.NewScheduler()
	if err != nil {
		return greq.WrapError(err, greq.CategoryInternal, "failed to create scheduler").Build()
	}
	if _, err := scheduler.ScheduleCheck(ctx, every, checker, load, func(report *docsite.Report, err error) {
		if err != nil {
			g.Logger.Error("Link check failed", logfields.Error(err))
			return
		}
		c.printReport(g.Stdout, report)
	}); err != nil {
		return greq.WrapError(err, greq.CategoryValidation, "failed to schedule link check").Build()
	}

	scheduler.Start()
	<-ctx.Done()
	return scheduler.Stop()
}

func (c *DocsCheckCmd) printReport(w io.Writer, report *docsite.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range report.Results {
		if r.Status != docsite.LinkBroken && !c.All {
			continue
		}
		detail := r.Error
		if r.StatusCode != 0 {
			detail = fmt.Sprintf("%d %s", r.StatusCode, detail)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Status, r.Source, r.Link, detail)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d links checked, %d broken (%s)\n",
		len(report.Results), len(report.Broken()), report.Duration.Round(time.Millisecond))
}

// DocsWatchCmd keeps a rendered configuration up to date.
type DocsWatchCmd struct {
	Format   string        `short:"f" name:"format" help:"Output format. Defaults to docs.format."`
	Output   string        `short:"o" name:"output" help:"File to keep up to date. Defaults to docs.output." type:"path"`
	Debounce time.Duration `name:"debounce" default:"500ms" help:"Wait this long for changes to settle."`
}

func (w *DocsWatchCmd) Run(parent *DocsCmd, g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}
	format, err := (&DocsRenderCmd{Format: w.Format}).format(cfg)
	if err != nil {
		return err
	}
	output := w.Output
	if output == "" {
		output = cfg.Docs.Output
	}
	if output == "" {
		return greq.NewError(greq.CategoryValidation, "watch needs an output file").
			WithContext("hint", "pass --output or set docs.output").
			Build()
	}

	render := func(context.Context) error {
		site, err := parent.loadSite(cfg)
		if err != nil {
			g.Logger.Error("Navigation is invalid; keeping the previous output", logfields.Error(err))
			return nil
		}
		if err := writeRendered(output, site, format); err != nil {
			return err
		}
		g.Logger.Info("Rendered site configuration", logfields.Path(output), logfields.Format(string(format)))
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := render(ctx); err != nil {
		return err
	}

	watcher, err := docsite.NewWatcher(parent.navPath(cfg), parent.docsDir(cfg), w.Debounce, render)
	if err != nil {
		return greq.WrapError(err, greq.CategoryConfig, "failed to create watcher").Build()
	}
	if err := watcher.Start(ctx); err != nil {
		return greq.WrapError(err, greq.CategoryConfig, "failed to start watcher").Build()
	}
	defer func() { _ = watcher.Stop() }()

	g.Logger.Info("Watching for changes", logfields.Path(output))
	<-ctx.Done()
	return nil
}
