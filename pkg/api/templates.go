package api

import (
	"context"
	"sync"
)

// NodeTemplate describes a node type from the template catalog: the
// ports a node of this type exposes and default property values.
type NodeTemplate struct {
	ID         string         `json:"id"`
	Title      string         `json:"title,omitempty"`
	Ports      []Port         `json:"ports,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TemplateResolver is the engine's read-only view of the node-template
// catalog. AddNode consults it for every node spec that names a
// template; an unknown template is a validation failure, not a silent
// default.
type TemplateResolver interface {
	// Resolve returns the template for id. ok is false when the
	// catalog has no such template.
	Resolve(ctx context.Context, id string) (tmpl NodeTemplate, ok bool, err error)
}

// StaticTemplates is a goroutine-safe, map-backed TemplateResolver for
// catalogs that are registered up front.
type StaticTemplates struct {
	mu        sync.RWMutex
	templates map[string]NodeTemplate
}

var _ TemplateResolver = (*StaticTemplates)(nil)

// NewStaticTemplates creates a resolver pre-populated with the given
// templates.
func NewStaticTemplates(templates ...NodeTemplate) *StaticTemplates {
	s := &StaticTemplates{templates: make(map[string]NodeTemplate, len(templates))}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	return s
}

// Register adds or replaces a template.
func (s *StaticTemplates) Register(t NodeTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

func (s *StaticTemplates) Resolve(ctx context.Context, id string) (NodeTemplate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	return t, ok, nil
}
