package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrlokans/mapimport/internal/config"
	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/importer"
	"github.com/mrlokans/mapimport/internal/plugins"
)

// ImportCommand submits one import from the command line.
type ImportCommand struct {
	Files        stringList
	URL          string
	Raw          string
	RawFile      string
	Format       string
	Destination  string
	LayerName    string
	Clear        bool
	Mode         string
	Plugin       string
	PluginArgs   keyValues
	DatabasePath string

	Out io.Writer
}

// NewImportCommand creates a new import command.
func NewImportCommand() *ImportCommand {
	return &ImportCommand{PluginArgs: keyValues{}, Out: os.Stdout}
}

// ParseFlags parses command line flags.
func (c *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.Var(&c.Files, "file", "Local file to import (repeatable)")
	fs.StringVar(&c.URL, "url", "", "Remote URL to import")
	fs.StringVar(&c.Raw, "raw", "", "Pasted data to import")
	fs.StringVar(&c.RawFile, "raw-file", "", "Read pasted data from a file, - for stdin")
	fs.StringVar(&c.Format, "format", "", "Data format (kml, gpx, geojson, csv, osm, georss, umap)")
	fs.StringVar(&c.Destination, "dest", "", "Destination collection ID, empty for a new collection")
	fs.StringVar(&c.LayerName, "name", "", "Name of the collection created for a new destination")
	fs.BoolVar(&c.Clear, "clear", false, "Empty the destination collection before importing")
	fs.StringVar(&c.Mode, "mode", "", "How to use a URL: copy or link")
	fs.StringVar(&c.Plugin, "plugin", "", "Quick-import plugin to prefill the import")
	fs.Var(c.PluginArgs, "arg", "Plugin argument as key=value (repeatable)")
	fs.StringVar(&c.DatabasePath, "db", config.DefaultDatabasePath, "Path to SQLite database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapimport import [options]\n\n")
		fmt.Fprintf(os.Stderr, "Import map data into a collection.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapimport import -file track.gpx\n")
		fmt.Fprintf(os.Stderr, "  mapimport import -url https://example.org/stops.csv -format csv -mode link\n")
		fmt.Fprintf(os.Stderr, "  mapimport import -plugin overpass -arg tags=amenity=cafe -arg bbox=48.8,2.2,48.9,2.4\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if c.Raw != "" && c.RawFile != "" {
		return fmt.Errorf("-raw and -raw-file are mutually exclusive")
	}
	if len(c.Files) == 0 && c.URL == "" && c.Raw == "" && c.RawFile == "" && c.Plugin == "" {
		return fmt.Errorf("one of -file, -url, -raw, -raw-file or -plugin is required")
	}
	if _, err := importer.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Format != "" {
		if _, err := formats.Parse(c.Format); err != nil {
			return err
		}
	}

	return nil
}

// Run executes the import command.
func (c *ImportCommand) Run() error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintln(out, "Map Import")
	fmt.Fprintln(out, "==========")

	env, err := openEnvironment(c.DatabasePath, out)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	form := importer.NewForm(importer.Draft{})

	if c.Plugin != "" {
		if err := c.openPlugin(ctx, env, form); err != nil {
			return err
		}
	}
	if err := c.fill(form); err != nil {
		return err
	}

	fmt.Fprintln(out, "Alerts:")
	orchestrator := importer.New(env.host, printAlerts(out), env.host.Settings())
	res, err := orchestrator.Submit(ctx, form)
	if err != nil {
		var validation *importer.ValidationError
		if errors.As(err, &validation) {
			return fmt.Errorf("invalid import: %w", err)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Action: %s\n", res.Action)
	fmt.Fprintf(out, "State:  %s\n", res.State)
	if res.Source != "" {
		fmt.Fprintf(out, "Source: %s\n", res.Source)
	}
	if res.Collection != nil {
		fmt.Fprintf(out, "Collection: %s (%s)\n", res.Collection.Name, res.Collection.ID)
	}
	if res.Err != nil {
		return fmt.Errorf("project import failed: %w", res.Err)
	}
	return nil
}

// fill copies the flags onto the form. Flags left empty keep whatever a
// plugin already set.
func (c *ImportCommand) fill(form *importer.Form) error {
	if len(c.Files) > 0 {
		files := make([]formats.File, 0, len(c.Files))
		for _, path := range c.Files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			files = append(files, formats.File{
				Name:        filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Data:        data,
			})
		}
		form.SetFiles(files)
	}

	raw := c.Raw
	if c.RawFile != "" {
		data, err := c.readRawFile()
		if err != nil {
			return err
		}
		raw = string(data)
	}
	if raw != "" {
		form.SetRaw(raw)
	}

	if c.URL != "" {
		form.SetURL(c.URL)
	}
	if c.Format != "" {
		format, err := formats.Parse(c.Format)
		if err != nil {
			return err
		}
		form.SetFormat(format)
	}
	if c.Mode != "" {
		mode, err := importer.ParseMode(c.Mode)
		if err != nil {
			return err
		}
		form.SetMode(mode)
	}
	if c.Destination != "" {
		form.SetDestinationID(strings.TrimSpace(c.Destination))
	}
	if c.LayerName != "" {
		form.SetLayerName(c.LayerName)
	}
	if c.Clear {
		form.SetClearExisting(true)
	}
	return nil
}

func (c *ImportCommand) readRawFile() ([]byte, error) {
	if c.RawFile == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(c.RawFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.RawFile, err)
	}
	return data, nil
}

func (c *ImportCommand) openPlugin(ctx context.Context, env *environment, form *importer.Form) error {
	registry := plugins.NewRegistry(plugins.Builtin(), plugins.HostContext{
		Destinations: importer.NewDestinations(env.host),
	}, plugins.ConfigsFrom(env.cfg.Plugins.Settings))
	registry.Load(ctx, []string{c.Plugin})

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := registry.Wait(waitCtx); err != nil {
		return fmt.Errorf("failed to load plugin %s: %w", c.Plugin, err)
	}
	if err, failed := registry.Failures()[c.Plugin]; failed {
		return fmt.Errorf("failed to load plugin %s: %w", c.Plugin, err)
	}

	plugin, ok := registry.Get(c.Plugin)
	if !ok {
		return fmt.Errorf("plugin %s is not loaded", c.Plugin)
	}
	if err := plugin.Open(ctx, form, plugins.Args(c.PluginArgs)); err != nil {
		return fmt.Errorf("plugin %s: %w", c.Plugin, err)
	}
	return nil
}
