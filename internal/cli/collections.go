package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrlokans/mapimport/internal/config"
	"github.com/mrlokans/mapimport/internal/entities"
)

// CollectionsCommand lists collections and optionally refreshes the remote
// ones that are due.
type CollectionsCommand struct {
	DatabasePath string
	Output       string
	Refresh      bool

	Out io.Writer
}

// collectionRow is the listing shape of a collection.
type collectionRow struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Loaded    bool       `yaml:"loaded"`
	RemoteURL string     `yaml:"remote_url,omitempty"`
	Format    string     `yaml:"format,omitempty"`
	Proxied   bool       `yaml:"proxied,omitempty"`
	FetchedAt *time.Time `yaml:"fetched_at,omitempty"`
}

// NewCollectionsCommand creates a new collections command.
func NewCollectionsCommand() *CollectionsCommand {
	return &CollectionsCommand{Out: os.Stdout}
}

// ParseFlags parses command line flags.
func (c *CollectionsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)

	fs.StringVar(&c.DatabasePath, "db", config.DefaultDatabasePath, "Path to SQLite database")
	fs.StringVar(&c.Output, "output", "table", "Output format: table or yaml")
	fs.BoolVar(&c.Refresh, "refresh", false, "Refresh remote collections that are due before listing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapimport collections [options]\n\n")
		fmt.Fprintf(os.Stderr, "List the collections of the map.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapimport collections\n")
		fmt.Fprintf(os.Stderr, "  mapimport collections -refresh -output yaml\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if c.Output != "table" && c.Output != "yaml" {
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	return nil
}

// Run executes the collections command.
func (c *CollectionsCommand) Run() error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	env, err := openEnvironment(c.DatabasePath, out)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	if c.Refresh {
		n, err := env.host.RequestDueRefreshes(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh collections: %w", err)
		}
		if c.Output == "table" {
			fmt.Fprintf(out, "Refreshed %d remote collections\n\n", n)
		}
	}

	list, err := env.host.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	rows := make([]collectionRow, len(list))
	for i := range list {
		rows[i] = newCollectionRow(&list[i])
	}

	if c.Output == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode collections: %w", err)
		}
		return enc.Close()
	}

	fmt.Fprintln(out, "Collections")
	fmt.Fprintln(out, "===========")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOADED\tREMOTE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.ID, r.Name, r.Loaded, r.RemoteURL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d\n", len(rows))
	return nil
}

func newCollectionRow(c *entities.Collection) collectionRow {
	return collectionRow{
		ID:        c.ID,
		Name:      c.Name,
		Loaded:    c.Loaded,
		RemoteURL: c.Remote.URL,
		Format:    c.Remote.Format,
		Proxied:   c.Remote.Proxied,
		FetchedAt: c.RemoteFetchedAt,
	}
}
