package model

import (
	"fmt"
	"strings"
)

// PageType is one kind of informational subpage to discover.
// Phrases is the candidate phrase set: earlier phrases are searched first
// and the search halts on the first success. It is static configuration.
type PageType struct {
	// Name labels the page type in exports ("About" -> About_Page, About_Content).
	Name string `json:"name" yaml:"name"`

	// Phrases are the ordered query fragments for this page type.
	Phrases []string `json:"phrases" yaml:"phrases"`
}

// Validate checks that the page type has a name and at least one phrase,
// none of them blank. A blank phrase would issue a bare site: query.
func (p PageType) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidPageType
	}
	if len(p.Phrases) == 0 {
		return fmt.Errorf("%w: %s has no phrases", ErrInvalidPageType, p.Name)
	}
	for i, phrase := range p.Phrases {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("%w: %s phrase %d is blank", ErrInvalidPageType, p.Name, i+1)
		}
	}
	return nil
}

// ValidatePageTypes checks a configured page type list: non-empty,
// every entry valid and names unique (case-insensitive).
func ValidatePageTypes(types []PageType) error {
	if len(types) == 0 {
		return ErrNoPageTypes
	}
	seen := make(map[string]bool, len(types))
	for _, pt := range types {
		if err := pt.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(pt.Name))
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicatePageType, pt.Name)
		}
		seen[key] = true
	}
	return nil
}

// DefaultPageTypes returns the About and Programs phrase sets.
// A fresh slice is returned on every call.
func DefaultPageTypes() []PageType {
	return []PageType{
		{
			Name:    "About",
			Phrases: []string{"about us", "about-us", "about", "company info", "our story"},
		},
		{
			Name:    "Programs",
			Phrases: []string{"programs", "training", "courses", "classes", "workshops"},
		},
	}
}
