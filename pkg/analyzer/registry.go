package analyzer

import (
	"sort"
	"sync"
)

// Registry is a container for all available detectors
type Registry struct {
	byFormat map[string][]Detector
	byName   map[string]Detector
	mu       sync.RWMutex
}

// NewRegistry creates a new detector registry
func NewRegistry() *Registry {
	return &Registry{
		byFormat: make(map[string][]Detector),
		byName:   make(map[string]Detector),
	}
}

// Register adds a detector to the registry, replacing one with the same name
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byName[d.Name()]; ok {
		for _, format := range old.SupportedFormats() {
			r.byFormat[format] = remove(r.byFormat[format], old)
		}
	}

	r.byName[d.Name()] = d
	for _, format := range d.SupportedFormats() {
		r.byFormat[format] = append(r.byFormat[format], d)
	}
}

// Get returns the detector registered under name
func (r *Registry) Get(name string) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	return d, ok
}

// GetAnalyzersForFormat returns all detectors that support the given format
func (r *Registry) GetAnalyzersForFormat(format string) []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Detector(nil), r.byFormat[format]...)
}

// GetSupportedFormats returns a sorted list of all supported formats
func (r *Registry) GetSupportedFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.byFormat))
	for format, detectors := range r.byFormat {
		if len(detectors) > 0 {
			formats = append(formats, format)
		}
	}
	sort.Strings(formats)

	return formats
}

func remove(list []Detector, d Detector) []Detector {
	out := list[:0]
	for _, item := range list {
		if item != d {
			out = append(out, item)
		}
	}
	return out
}
