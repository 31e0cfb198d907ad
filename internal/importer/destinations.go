package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrlokans/mapimport/internal/entities"
)

// Choice is one selectable import destination.
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	New  bool   `json:"new,omitempty"`
}

// Destinations maps destination ids to collections.
type Destinations struct {
	collections Collections
}

func NewDestinations(collections Collections) *Destinations {
	return &Destinations{collections: collections}
}

// Resolve returns the collection named by id when it exists, is loaded and is
// not remote-linked. In every other case a new empty collection is created
// and registered with the host, named name or "Layer N" when name is empty.
func (d *Destinations) Resolve(ctx context.Context, id, name string) (*entities.Collection, error) {
	if id != "" && id != NewDestination {
		c, err := d.collections.GetCollection(ctx, id)
		switch {
		case err == nil && c.Selectable():
			return c, nil
		case err != nil && !errors.Is(err, ErrCollectionNotFound):
			return nil, fmt.Errorf("lookup collection %s: %w", id, err)
		}
	}

	if name == "" {
		var err error
		if name, err = d.nextName(ctx); err != nil {
			return nil, err
		}
	}
	c, err := d.collections.CreateCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// Choices lists the "new collection" choice followed by every collection data
// can be imported into. Remote-linked and still loading collections are left
// out.
func (d *Destinations) Choices(ctx context.Context) ([]Choice, error) {
	all, err := d.collections.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	choices := []Choice{{ID: NewDestination, Name: "Import in a new layer", New: true}}
	for i := range all {
		if !all[i].Selectable() {
			continue
		}
		choices = append(choices, Choice{ID: all[i].ID, Name: all[i].Name})
	}
	return choices, nil
}

// FindByName returns the first selectable collection with the given name.
func (d *Destinations) FindByName(ctx context.Context, name string) (*entities.Collection, bool, error) {
	all, err := d.collections.ListCollections(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list collections: %w", err)
	}
	for i := range all {
		if all[i].Name == name && all[i].Selectable() {
			return &all[i], true, nil
		}
	}
	return nil, false, nil
}

const layerPrefix = "Layer "

// nextName numbers a new layer one past the highest existing "Layer N", so
// names stay unique after collections were removed or replaced.
func (d *Destinations) nextName(ctx context.Context) (string, error) {
	all, err := d.collections.ListCollections(ctx)
	if err != nil {
		return "", fmt.Errorf("list collections: %w", err)
	}
	highest := 0
	for i := range all {
		suffix, ok := strings.CutPrefix(all[i].Name, layerPrefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > highest {
			highest = n
		}
	}
	return layerPrefix + strconv.Itoa(highest+1), nil
}
