package formats

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"
)

// File describes a local file selected for import.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// sniffLen bounds how much content Detect looks at.
const sniffLen = 512

var extensions = map[string]Format{
	".kml":     KML,
	".gpx":     GPX,
	".geojson": GeoJSON,
	".json":    GeoJSON,
	".csv":     CSV,
	".tsv":     CSV,
	".dsv":     CSV,
	".xml":     OSM,
	".osm":     OSM,
	".umap":    Project,
	".rss":     GeoRSS,
	".atom":    GeoRSS,
}

var mimeTypes = map[string]Format{
	"application/vnd.google-earth.kml+xml": KML,
	"application/gpx+xml":                  GPX,
	"application/geo+json":                 GeoJSON,
	"text/csv":                             CSV,
	"text/tab-separated-values":            CSV,
	"application/rss+xml":                  GeoRSS,
	"application/atom+xml":                 GeoRSS,
}

// Detect derives a candidate format for a single file: by extension first,
// then by MIME type, then by a content signature. Returns Unset when nothing
// matches.
func Detect(f File) Format {
	if format, ok := extensions[strings.ToLower(path.Ext(f.Name))]; ok {
		return format
	}
	contentType := strings.ToLower(f.ContentType)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if format, ok := mimeTypes[strings.TrimSpace(contentType)]; ok {
		return format
	}
	return sniff(f.Data)
}

func sniff(data []byte) Format {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	data = bytes.TrimLeft(data, "\ufeff \t\r\n")
	if len(data) == 0 {
		return Unset
	}

	if data[0] == '{' {
		return sniffJSON(data)
	}

	if data[0] == '<' {
		head := bytes.ToLower(data)
		switch {
		case bytes.Contains(head, []byte("<gpx")):
			return GPX
		case bytes.Contains(head, []byte("<kml")):
			return KML
		case bytes.Contains(head, []byte("<osm")):
			return OSM
		case bytes.Contains(head, []byte("<rss")), bytes.Contains(head, []byte("<feed")):
			return GeoRSS
		}
	}
	return Unset
}

// sniffJSON tells a project envelope from plain GeoJSON. The sniffed prefix
// is usually truncated, so it only looks for a top level "type" member.
func sniffJSON(data []byte) Format {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Type == string(Project) {
			return Project
		}
		return GeoJSON
	}
	compact := bytes.Join(bytes.Fields(data), nil)
	if bytes.Contains(compact, []byte(`"type":"umap"`)) {
		return Project
	}
	return GeoJSON
}

// Resolve infers a single format for a set of files. Files agreeing on one
// format resolve to it; as soon as a file disagrees with the format adopted so
// far (including a file with no detectable format) the result is Unset.
func Resolve(files []File) Format {
	agreed := Unset
	for _, f := range files {
		candidate := Detect(f)
		if agreed == Unset && candidate != Unset {
			agreed = candidate
			continue
		}
		if agreed != Unset && candidate != agreed {
			return Unset
		}
	}
	return agreed
}
