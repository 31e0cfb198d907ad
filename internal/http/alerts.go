package http

import (
	"sync"

	"github.com/mrlokans/mapimport/internal/importer"
)

// Alert is a user-facing message produced while handling a request.
type Alert struct {
	Level   importer.Level `json:"level"`
	Message string         `json:"message"`
}

// alertCollector gathers the alerts of a single request so they can be
// returned in the response.
type alertCollector struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *alertCollector) Alert(level importer.Level, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, Alert{Level: level, Message: message})
}

func (a *alertCollector) List() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert{}, a.alerts...)
}
