package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxArchivedPayload bounds how much of a rejected payload is kept.
const MaxArchivedPayload = 64 << 10

const rejectedPrefix = "rejected-"

// RejectedPayload is a payload the host refused to import.
type RejectedPayload struct {
	Source     string    `json:"source"`
	Name       string    `json:"name"`
	Error      string    `json:"error"`
	Payload    string    `json:"payload"`
	Truncated  bool      `json:"truncated,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

// Auditor archives rejected payloads as JSON files so failed imports can be
// inspected later.
type Auditor struct {
	AuditDir string
	now      func() time.Time
}

func NewAuditor(auditDir string) *Auditor {
	return &Auditor{
		AuditDir: auditDir,
		now:      time.Now,
	}
}

// SaveRejected writes one rejected payload and returns its file name.
func (a *Auditor) SaveRejected(source, name string, data []byte, cause error) (string, error) {
	if err := a.ensureAuditDir(); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	rejected := RejectedPayload{
		Source:     source,
		Name:       name,
		RejectedAt: a.now().UTC(),
	}
	if cause != nil {
		rejected.Error = cause.Error()
	}
	if len(data) > MaxArchivedPayload {
		data = data[:MaxArchivedPayload]
		rejected.Truncated = true
	}
	rejected.Payload = string(data)

	jsonData, err := json.MarshalIndent(rejected, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal rejected payload: %w", err)
	}

	filename := fmt.Sprintf("%s%s-%s.json", rejectedPrefix, rejected.RejectedAt.Format("20060102T150405"), uuid.New().String())
	path := filepath.Join(a.AuditDir, filename)
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	log.Printf("[AUDIT] Saved rejected %s payload %s to %s", source, name, path)
	return filename, nil
}

// Prune removes archived payloads older than retention and returns how many
// were removed. A missing archive directory is not an error.
func (a *Auditor) Prune(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(a.AuditDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read audit directory: %w", err)
	}

	cutoff := a.now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), rejectedPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.AuditDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// ensureAuditDir creates the audit directory if it doesn't exist
func (a *Auditor) ensureAuditDir() error {
	if _, err := os.Stat(a.AuditDir); os.IsNotExist(err) {
		if err := os.MkdirAll(a.AuditDir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return nil
}
