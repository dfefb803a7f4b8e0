package collision

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MaxCategories is the number of distinct labels a Registry can hold; each
// label owns one bit of a Chipmunk shape filter category mask.
const MaxCategories = 32

var ErrRegistryFull = errors.New("collision: category registry full")

// Registry maps collision category labels to mask bits. It is local to a
// physics world, never global.
type Registry struct {
	mu     sync.RWMutex
	bits   map[string]uint
	labels []string
}

func NewRegistry(labels ...string) (*Registry, error) {
	r := &Registry{bits: make(map[string]uint)}
	for _, l := range labels {
		if _, err := r.Bit(l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Bit returns the mask bit for label, assigning the next free bit on first use.
func (r *Registry) Bit(label string) (uint, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("collision: empty category label")
	}

	r.mu.RLock()
	bit, ok := r.bits[label]
	r.mu.RUnlock()
	if ok {
		return bit, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bit, ok := r.bits[label]; ok {
		return bit, nil
	}
	if len(r.labels) >= MaxCategories {
		return 0, fmt.Errorf("%w: cannot add %q", ErrRegistryFull, label)
	}
	bit = 1 << uint(len(r.labels))
	r.bits[label] = bit
	r.labels = append(r.labels, label)
	return bit, nil
}

// Mask ORs the bits of every label, registering unknown ones.
func (r *Registry) Mask(labels ...string) (uint, error) {
	var mask uint
	for _, l := range labels {
		bit, err := r.Bit(l)
		if err != nil {
			return 0, err
		}
		mask |= bit
	}
	return mask, nil
}

// Labels lists the registered labels whose bits are set in mask, sorted.
func (r *Registry) Labels(mask uint) []string {
	if mask == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for i, l := range r.labels {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
