// Package pages serves the static informational pages.
package pages

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed pages.yaml
var pagesYAML []byte

// Slugs every page set must define.
var requiredSlugs = []string{"about", "contact", "help", "privacy", "tutorial"}

type Section struct {
	Heading string `yaml:"heading" json:"heading"`
	Body    string `yaml:"body" json:"body"`
}

type Page struct {
	Slug     string    `yaml:"slug" json:"slug"`
	Title    string    `yaml:"title" json:"title"`
	Summary  string    `yaml:"summary" json:"summary"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Store is an immutable, slug-indexed set of pages.
type Store struct {
	order  []string
	bySlug map[string]Page
}

// Parse decodes a YAML page list and checks it is complete.
func Parse(data []byte) (*Store, error) {
	var list []Page
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}

	s := &Store{bySlug: make(map[string]Page, len(list))}
	for _, p := range list {
		if p.Slug == "" || p.Title == "" {
			return nil, fmt.Errorf("page %q: slug and title are required", p.Slug)
		}
		if _, dup := s.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("page %q defined twice", p.Slug)
		}
		s.bySlug[p.Slug] = p
		s.order = append(s.order, p.Slug)
	}
	for _, slug := range requiredSlugs {
		if _, ok := s.bySlug[slug]; !ok {
			return nil, fmt.Errorf("page %q is missing", slug)
		}
	}
	return s, nil
}

// Default returns the built-in pages.
func Default() (*Store, error) {
	return Parse(pagesYAML)
}

// Get returns the page with slug.
func (s *Store) Get(slug string) (Page, bool) {
	p, ok := s.bySlug[slug]
	return p, ok
}

// List returns every page without its sections, in file order.
func (s *Store) List() []Page {
	out := make([]Page, 0, len(s.order))
	for _, slug := range s.order {
		p := s.bySlug[slug]
		p.Sections = nil
		out = append(out, p)
	}
	return out
}

// Has reports whether slug names a page.
func (s *Store) Has(slug string) bool {
	return slices.Contains(s.order, slug)
}
