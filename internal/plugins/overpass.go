package plugins

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/importer"
)

const (
	OverpassKey             = "overpass"
	DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"
)

type overpassConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  int    `mapstructure:"timeout"`
}

// Overpass builds an OpenStreetMap query URL from a tag filter and a bounding
// box.
type Overpass struct {
	endpoint string
	timeout  int
}

// NewOverpass is the Module constructor of the overpass plugin.
func NewOverpass(_ HostContext, cfg Config) (Plugin, error) {
	c := overpassConfig{Endpoint: DefaultOverpassEndpoint, Timeout: 25}
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid overpass endpoint %q: %w", c.Endpoint, err)
	}
	return &Overpass{endpoint: c.Endpoint, timeout: c.Timeout}, nil
}

func (o *Overpass) Name() string { return OverpassKey }

// Open expects args "tags" (key=value, comma separated for several filters),
// "bbox" (south,west,north,east) and optionally "mode".
func (o *Overpass) Open(_ context.Context, surface importer.Surface, args Args) error {
	filters, err := parseTags(args["tags"])
	if err != nil {
		return err
	}
	bbox, err := parseBBox(args["bbox"])
	if err != nil {
		return err
	}
	mode := importer.ModeCopy
	if m := args["mode"]; m != "" {
		if mode, err = importer.ParseMode(m); err != nil {
			return err
		}
	}

	query := fmt.Sprintf("[out:xml][timeout:%d];nwr%s(%s);out body;>;out skel qt;", o.timeout, filters, bbox)
	importer.UseURL(surface, o.endpoint+"?data="+url.QueryEscape(query))
	surface.SetFormat(formats.OSM)
	surface.SetMode(mode)
	return nil
}

func parseTags(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("overpass: tags are required")
	}
	var b strings.Builder
	for _, tag := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(tag), "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			return "", fmt.Errorf("overpass: invalid tag %q", tag)
		}
		if !ok || value == "" {
			fmt.Fprintf(&b, "[%q]", key)
			continue
		}
		fmt.Fprintf(&b, "[%q=%q]", key, value)
	}
	return b.String(), nil
}

func parseBBox(raw string) (string, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return "", fmt.Errorf("overpass: bbox must be south,west,north,east")
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", fmt.Errorf("overpass: invalid bbox value %q: %w", p, err)
		}
		coords[i] = v
	}
	south, west, north, east := coords[0], coords[1], coords[2], coords[3]
	if south > north || west > east || south < -90 || north > 90 || west < -180 || east > 180 {
		return "", fmt.Errorf("overpass: bbox out of range")
	}
	return strings.Join([]string{
		strconv.FormatFloat(south, 'f', -1, 64),
		strconv.FormatFloat(west, 'f', -1, 64),
		strconv.FormatFloat(north, 'f', -1, 64),
		strconv.FormatFloat(east, 'f', -1, 64),
	}, ","), nil
}
