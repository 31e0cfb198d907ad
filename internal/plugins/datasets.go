package plugins

import (
	"context"
	"fmt"

	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/importer"
)

const DatasetsKey = "datasets"

// Dataset is one preconfigured remote source.
type Dataset struct {
	Label  string `mapstructure:"label" json:"label"`
	URL    string `mapstructure:"url" json:"url"`
	Format string `mapstructure:"format" json:"format"`
}

type datasetsConfig struct {
	Items []Dataset `mapstructure:"items"`
}

// Datasets offers a fixed catalogue of remote sources. Re-importing a dataset
// replaces the content of the collection named after it.
type Datasets struct {
	destinations *importer.Destinations
	items        []Dataset
	formats      map[string]formats.Format
}

// NewDatasets is the Module constructor of the datasets plugin.
func NewDatasets(host HostContext, cfg Config) (Plugin, error) {
	var c datasetsConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}

	d := &Datasets{destinations: host.Destinations, formats: make(map[string]formats.Format)}
	for _, item := range c.Items {
		if item.Label == "" || item.URL == "" {
			return nil, fmt.Errorf("dataset needs a label and a url")
		}
		format, err := formats.Parse(item.Format)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", item.Label, err)
		}
		if format.IsProject() {
			return nil, fmt.Errorf("dataset %s: project files cannot be listed as datasets", item.Label)
		}
		d.items = append(d.items, item)
		d.formats[item.Label] = format
	}
	return d, nil
}

func (d *Datasets) Name() string { return DatasetsKey }

// Items lists the configured datasets.
func (d *Datasets) Items() []Dataset {
	return append([]Dataset(nil), d.items...)
}

// Open expects arg "dataset" with the label of a configured dataset.
func (d *Datasets) Open(ctx context.Context, surface importer.Surface, args Args) error {
	label := args["dataset"]
	var item *Dataset
	for i := range d.items {
		if d.items[i].Label == label {
			item = &d.items[i]
			break
		}
	}
	if item == nil {
		return fmt.Errorf("unknown dataset %q", label)
	}

	importer.UseURL(surface, item.URL)
	surface.SetFormat(d.formats[item.Label])
	surface.SetMode(importer.ModeCopy)
	surface.SetLayerName(item.Label)

	if d.destinations != nil {
		existing, ok, err := d.destinations.FindByName(ctx, item.Label)
		if err != nil {
			return err
		}
		if ok {
			surface.SetDestinationID(existing.ID)
			surface.SetClearExisting(true)
			return nil
		}
	}
	surface.SetDestinationID(importer.NewDestination)
	surface.SetClearExisting(false)
	return nil
}
