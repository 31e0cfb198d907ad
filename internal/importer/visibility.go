package importer

// Visibility tells the UI which controls matter for the current fields.
type Visibility struct {
	Destination bool `json:"destination"`
	Clear       bool `json:"clear"`
	Mode        bool `json:"mode"`
}

// VisibilityFor derives control visibility from a request. A project import
// replaces the whole map, so destination, clear and mode do not apply to it.
func VisibilityFor(req Request) Visibility {
	project := req.Format.IsProject()
	return Visibility{
		Destination: !project,
		Clear:       !project,
		Mode:        !project && req.URL != "",
	}
}
