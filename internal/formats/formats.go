// Package formats enumerates the data encodings the importer recognizes and
// infers them from file names, MIME types and content signatures.
//
// Nothing in this package parses a payload. Detection looks at names and at
// most the first 512 bytes of content.
package formats

import (
	"errors"
	"fmt"
	"strings"
)

// Format is one of the recognized data encodings. The zero value means unset.
type Format string

const (
	Unset   Format = ""
	GeoJSON Format = "geojson"
	CSV     Format = "csv"
	GPX     Format = "gpx"
	KML     Format = "kml"
	OSM     Format = "osm"
	GeoRSS  Format = "georss"

	// Project is the native map format. Importing it replaces the whole map
	// instead of feeding a single collection.
	Project Format = "umap"
)

var ErrUnknownFormat = errors.New("unknown format")

var all = []Format{GeoJSON, CSV, GPX, KML, OSM, GeoRSS, Project}

// All returns every recognized format in a stable order.
func All() []Format {
	out := make([]Format, len(all))
	copy(out, all)
	return out
}

// Parse converts a user supplied name into a Format. The empty string parses
// to Unset.
func Parse(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unset, nil
	}
	for _, f := range all {
		if string(f) == s {
			return f, nil
		}
	}
	return Unset, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) IsSet() bool { return f != Unset }

// IsProject reports whether f is the native project format.
func (f Format) IsProject() bool { return f == Project }

func (f Format) String() string { return string(f) }
