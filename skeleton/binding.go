package skeleton

import "fmt"

// Pair links a master bone to its slave counterpart. The pair's position in
// Binding.Pairs is the joint index used by the controller and the follower.
type Pair struct {
	Name   string
	Master int
	Slave  int
}

// Binding is the immutable 1:1 bone correspondence between an animated master
// hierarchy and a physics slave hierarchy.
type Binding struct {
	master *Hierarchy
	slave  *Hierarchy
	pairs  []Pair
	joints map[string]int
}

// NewBinding matches bones by name. Both hierarchies must hold the same bone
// set with the same parent for each bone.
func NewBinding(master, slave *Hierarchy) (*Binding, error) {
	if master == nil || slave == nil {
		return nil, fmt.Errorf("%w: nil hierarchy", ErrConfigurationMismatch)
	}

	for i := 0; i < master.Len(); i++ {
		name := master.Bone(i).Name
		if _, ok := slave.Index(name); !ok {
			return nil, fmt.Errorf("%w: bone %q missing from slave hierarchy", ErrConfigurationMismatch, name)
		}
	}
	for i := 0; i < slave.Len(); i++ {
		name := slave.Bone(i).Name
		if _, ok := master.Index(name); !ok {
			return nil, fmt.Errorf("%w: bone %q missing from master hierarchy", ErrConfigurationMismatch, name)
		}
	}

	b := &Binding{
		master: master,
		slave:  slave,
		pairs:  make([]Pair, 0, master.Len()),
		joints: make(map[string]int, master.Len()),
	}
	for mi := 0; mi < master.Len(); mi++ {
		name := master.Bone(mi).Name
		si, _ := slave.Index(name)
		if mp, sp := master.ParentName(mi), slave.ParentName(si); mp != sp {
			return nil, fmt.Errorf("%w: bone %q has parent %q in master but %q in slave", ErrConfigurationMismatch, name, mp, sp)
		}
		b.joints[name] = len(b.pairs)
		b.pairs = append(b.pairs, Pair{Name: name, Master: mi, Slave: si})
	}
	return b, nil
}

func (b *Binding) Master() *Hierarchy { return b.master }

func (b *Binding) Slave() *Hierarchy { return b.slave }

func (b *Binding) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pairs)
}

func (b *Binding) Pair(joint int) Pair {
	return b.pairs[joint]
}

// Pairs returns a copy of the pair list.
func (b *Binding) Pairs() []Pair {
	return append([]Pair(nil), b.pairs...)
}

// Joint resolves a bone name to its joint index.
func (b *Binding) Joint(name string) (int, bool) {
	if b == nil {
		return 0, false
	}
	j, ok := b.joints[name]
	return j, ok
}
