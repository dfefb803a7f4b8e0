package collision

import (
	"sort"
	"strings"
)

// Contact is a single collision between a ragdoll joint and another object.
// Categories are the labels of the object that was struck.
type Contact struct {
	Joint      string
	Categories []string
	Impulse    float64
	Tick       uint64
}

// ExemptionSet holds the categories that never cost the ragdoll strength.
// It is immutable once built.
type ExemptionSet struct {
	labels map[string]struct{}
}

func NewExemptionSet(labels ...string) ExemptionSet {
	set := ExemptionSet{labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		set.labels[l] = struct{}{}
	}
	return set
}

// IsExempt reports whether any of the contact's categories is in the set. A
// contact without categories is never exempt.
func (s ExemptionSet) IsExempt(c Contact) bool {
	for _, cat := range c.Categories {
		if _, ok := s.labels[cat]; ok {
			return true
		}
	}
	return false
}

func (s ExemptionSet) Contains(label string) bool {
	_, ok := s.labels[label]
	return ok
}

func (s ExemptionSet) Len() int {
	return len(s.labels)
}

// Labels returns the set members sorted.
func (s ExemptionSet) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
