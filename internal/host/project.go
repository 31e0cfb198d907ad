package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/formats"
)

// ErrInvalidProject wraps every problem with a project payload.
var ErrInvalidProject = errors.New("invalid project")

type projectEnvelope struct {
	Type       string            `json:"type"`
	Properties json.RawMessage   `json:"properties"`
	Layers     []json.RawMessage `json:"layers"`
}

type layerEnvelope struct {
	Options struct {
		Name       string      `json:"name"`
		RemoteData *remoteData `json:"remoteData"`
	} `json:"_umap_options"`
	Features []json.RawMessage `json:"features"`
}

type remoteData struct {
	URL    string `json:"url"`
	Format string `json:"format"`
	Proxy  bool   `json:"proxy"`
	TTL    any    `json:"ttl"`
}

func (r remoteData) ttlSeconds() int {
	switch v := r.TTL.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func (s *Service) ImportProjectFile(ctx context.Context, file formats.File) error {
	return s.importProject(ctx, "file", file.Name, file.Data)
}

func (s *Service) ImportProjectRaw(ctx context.Context, raw string) error {
	return s.importProject(ctx, "raw", rawDatasetName, []byte(raw))
}

func (s *Service) ImportProjectURL(ctx context.Context, url string) error {
	data, err := s.fetcher.Get(ctx, url, fetch.Options{})
	if err != nil {
		s.events.LogProject("url", "Project download from "+url+" failed", 0, err)
		return fmt.Errorf("download project: %w", err)
	}
	return s.importProject(ctx, "url", url, data)
}

func (s *Service) importProject(ctx context.Context, source, name string, data []byte) error {
	project, layers, err := parseProject(data)
	if err != nil {
		s.archiveRejected(source, name, data, err)
		s.events.LogProject(source, "Invalid project "+name, 0, err)
		return err
	}
	project.ImportedAt = s.now()

	if err := s.collections.ReplaceAll(ctx, project, layers); err != nil {
		s.events.LogProject(source, "Project "+name+" could not be stored", len(layers), err)
		return fmt.Errorf("replace project: %w", err)
	}
	log.Printf("[IMPORT] Replaced project from %s %s: %d layers", source, name, len(layers))
	s.events.LogProject(source, fmt.Sprintf("Imported project %s", project.Name), len(layers), nil)

	for i := range layers {
		if layers[i].IsRemote() {
			s.FetchRemote(ctx, &layers[i], true)
		}
	}
	return nil
}

func (s *Service) archiveRejected(source, name string, data []byte, cause error) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.SaveRejected(source, name, data, cause); err != nil {
		log.Printf("[IMPORT] Failed to archive rejected payload %s: %v", name, err)
	}
}

// parseProject validates a project envelope and maps its layers to
// collections.
func parseProject(data []byte) (*entities.Project, []entities.Collection, error) {
	var env projectEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	if !strings.EqualFold(env.Type, string(formats.Project)) {
		return nil, nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidProject, env.Type)
	}

	project := &entities.Project{}
	if len(env.Properties) > 0 && !bytes.Equal(env.Properties, []byte("null")) {
		var props struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(env.Properties, &props); err != nil {
			return nil, nil, fmt.Errorf("%w: properties: %v", ErrInvalidProject, err)
		}
		project.Name = props.Name
		project.Properties = string(env.Properties)
	}

	layers := make([]entities.Collection, 0, len(env.Layers))
	for i, raw := range env.Layers {
		var layer layerEnvelope
		if err := json.Unmarshal(raw, &layer); err != nil {
			return nil, nil, fmt.Errorf("%w: layer %d: %v", ErrInvalidProject, i+1, err)
		}
		c := entities.Collection{Name: layer.Options.Name, Loaded: true}
		if c.Name == "" {
			c.Name = fmt.Sprintf("Layer %d", i+1)
		}
		if rd := layer.Options.RemoteData; rd != nil && rd.URL != "" {
			format, err := formats.Parse(rd.Format)
			if err != nil || !format.IsSet() || format.IsProject() {
				return nil, nil, fmt.Errorf("%w: layer %s: invalid remote format %q", ErrInvalidProject, c.Name, rd.Format)
			}
			c.Remote = entities.RemoteLink{
				URL:                    rd.URL,
				Format:                 format.String(),
				Proxied:                rd.Proxy,
				RefreshIntervalSeconds: rd.ttlSeconds(),
			}
			c.Loaded = false
		} else if len(layer.Features) > 0 {
			c.Datasets = []entities.Dataset{{
				Name:   c.Name,
				Format: formats.GeoJSON.String(),
				Origin: entities.DatasetOriginRaw,
				Data:   raw,
				Size:   len(raw),
			}}
		}
		layers = append(layers, c)
	}
	return project, layers, nil
}
