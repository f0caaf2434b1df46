// Package dynamicdata keeps the registry of computed values that can be
// embedded into a generated offer document. Every entry knows its encoded
// size and whether it is selected for the PDF.
package dynamicdata

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metadata describes a registered value.
type Metadata struct {
	Category    string `json:"category"`
	Label       string `json:"label"`
	DataType    string `json:"dataType"`
	Priority    string `json:"priority"`
	Description string `json:"description,omitempty"`
}

// Entry is one registered value.
type Entry struct {
	Key          string    `json:"key"`
	Value        any       `json:"value"`
	Metadata     Metadata  `json:"metadata"`
	SizeBytes    int       `json:"sizeBytes"`
	IncludeInPDF bool      `json:"includeInPdf"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CategoryStats aggregates the entries of one category.
type CategoryStats struct {
	Count     int `json:"count"`
	SizeBytes int `json:"sizeBytes"`
	InPDF     int `json:"inPdf"`
}

// Manager is the registry. It is safe for concurrent use.
type Manager struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewManager creates an empty registry.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// RegisterValue stores value under key, replacing any previous value. A
// re-registered key keeps its PDF selection.
func (m *Manager) RegisterValue(key string, value any, meta Metadata) {
	size := encodedSize(value)

	m.mu.Lock()
	defer m.mu.Unlock()

	include := true
	if existing, ok := m.entries[key]; ok {
		include = existing.IncludeInPDF
	}
	if meta.DataType == "" {
		meta.DataType = dataTypeOf(value)
	}
	m.entries[key] = &Entry{
		Key:          key,
		Value:        value,
		Metadata:     meta,
		SizeBytes:    size,
		IncludeInPDF: include,
		UpdatedAt:    m.now(),
	}

	m.logger.Debug("value registered",
		zap.String("op", "dynamicdata.RegisterValue"),
		zap.String("key", key),
		zap.Int("sizeBytes", size),
	)
}

// Get returns a copy of the entry for key.
func (m *Manager) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns all entries sorted by key.
func (m *Manager) Entries() []Entry {
	return m.filter(func(*Entry) bool { return true })
}

// PDFEntries returns the entries selected for the PDF, sorted by key.
func (m *Manager) PDFEntries() []Entry {
	return m.filter(func(e *Entry) bool { return e.IncludeInPDF })
}

func (m *Manager) filter(keep func(*Entry) bool) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetIncludeInPDF toggles the PDF selection of key. It reports false when the
// key is unknown.
func (m *Manager) SetIncludeInPDF(key string, include bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	e.IncludeInPDF = include
	return true
}

// TotalSize is the summed encoded size of all entries.
func (m *Manager) TotalSize() int {
	total := 0
	for _, e := range m.Entries() {
		total += e.SizeBytes
	}
	return total
}

// PDFSize is the summed encoded size of the entries selected for the PDF.
func (m *Manager) PDFSize() int {
	total := 0
	for _, e := range m.PDFEntries() {
		total += e.SizeBytes
	}
	return total
}

// Stats groups the entries by category.
func (m *Manager) Stats() map[string]CategoryStats {
	stats := make(map[string]CategoryStats)
	for _, e := range m.Entries() {
		s := stats[e.Metadata.Category]
		s.Count++
		s.SizeBytes += e.SizeBytes
		if e.IncludeInPDF {
			s.InPDF++
		}
		stats[e.Metadata.Category] = s
	}
	return stats
}

// Remove deletes key from the registry.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear drops every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
}

func encodedSize(value any) int {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return len(data)
}

func dataTypeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "object"
	}
}
