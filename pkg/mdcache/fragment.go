/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package mdcache

import (
	"fmt"
	"sort"
	"time"

	"github.com/basenana/nanamds/pkg/types"
)

type FragState int

const (
	Unfrozen FragState = iota
	Freezing
	Frozen
)

func (s FragState) String() string {
	switch s {
	case Unfrozen:
		return "unfrozen"
	case Freezing:
		return "freezing"
	case Frozen:
		return "frozen"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DirectoryFragment caches the dentries of one shard of a directory. It is
// owned by the Cache arena and reaches its inode and ancestors through ids.
type DirectoryFragment struct {
	key   types.FragKey
	cache *Cache

	items     map[string]*Dentry
	itemCount int
	nameBytes int

	popularity DecayCounter
	state      FragState
	complete   bool
	dirty      bool

	hardPinned       int
	nestedHardPinned int

	waitingOnDentry map[string][]Completion
	waitingOnAll    []Completion
	waitingToFreeze []Completion
}

func newFragment(c *Cache, key types.FragKey) *DirectoryFragment {
	return &DirectoryFragment{
		key:             key,
		cache:           c,
		items:           make(map[string]*Dentry),
		popularity:      NewDecayCounter(c.halfLife),
		waitingOnDentry: make(map[string][]Completion),
	}
}

func (f *DirectoryFragment) Key() types.FragKey {
	return f.key
}

func (f *DirectoryFragment) Inode() *Inode {
	return f.cache.mustInode(f.key.Ino)
}

func (f *DirectoryFragment) ItemCount() int {
	return f.itemCount
}

func (f *DirectoryFragment) NameBytes() int {
	return f.nameBytes
}

func (f *DirectoryFragment) State() FragState {
	return f.state
}

func (f *DirectoryFragment) HardPinned() int {
	return f.hardPinned
}

func (f *DirectoryFragment) NestedHardPinned() int {
	return f.nestedHardPinned
}

func (f *DirectoryFragment) IsComplete() bool {
	return f.complete
}

// MarkComplete records that every dentry of the fragment is in cache, so a
// lookup miss is authoritative.
func (f *DirectoryFragment) MarkComplete() {
	f.complete = true
}

func (f *DirectoryFragment) IsDirty() bool {
	return f.dirty
}

func (f *DirectoryFragment) MarkDirty() {
	f.dirty = true
}

func (f *DirectoryFragment) Popularity(now time.Time) float64 {
	return f.popularity.Get(now)
}

func (f *DirectoryFragment) AddChild(d *Dentry) {
	if f.itemCount != len(f.items) {
		f.cache.bug("%s: item count %d does not match %d cached dentries", f, f.itemCount, len(f.items))
	}
	if d.owned {
		f.cache.bug("%s: dentry %s already belongs to %s", f, d.name, d.dir)
	}
	if _, ok := f.items[d.name]; ok {
		f.cache.bug("%s: duplicate dentry %s", f, d.name)
	}

	f.items[d.name] = d
	d.dir = f.key
	d.owned = true

	f.itemCount++
	f.nameBytes += len(d.name)
	dentryGauge.Inc()

	if f.itemCount == 1 {
		f.Inode().get(PinChild)
	}
}

func (f *DirectoryFragment) RemoveChild(d *Dentry) {
	cur, ok := f.items[d.name]
	if !ok || cur != d {
		f.cache.bug("%s: remove of dentry %s not in fragment", f, d.name)
	}

	delete(f.items, d.name)
	d.owned = false

	f.itemCount--
	f.nameBytes -= len(d.name)
	dentryGauge.Dec()

	if f.itemCount == 0 {
		f.Inode().put(PinChild)
	}
}

func (f *DirectoryFragment) Lookup(name string) (*Dentry, bool) {
	d, ok := f.items[name]
	return d, ok
}

// Names lists the cached dentry names in lexicographic order.
func (f *DirectoryFragment) Names() []string {
	names := make([]string, 0, len(f.items))
	for name := range f.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dentries enumerates the fragment for the persistence layer, ordered by
// name.
func (f *DirectoryFragment) Dentries() []types.DentryRecord {
	names := f.Names()
	result := make([]types.DentryRecord, 0, len(names))
	for _, name := range names {
		result = append(result, types.DentryRecord{Name: name, Ino: f.items[name].ino})
	}
	return result
}

func (f *DirectoryFragment) Record() *types.FragmentRecord {
	return &types.FragmentRecord{
		Key:       f.key,
		Dentries:  f.Dentries(),
		UpdatedAt: f.cache.now(),
	}
}

// Hit counts an access on the fragment and on every inode from its own up to
// the root.
func (f *DirectoryFragment) Hit() {
	c := f.cache
	now := c.now()
	f.popularity.Hit(now)

	in := f.Inode()
	for {
		in.popularity.Hit(now)
		if in.parent == nil {
			break
		}
		in = c.mustInode(in.parent.dir.Ino)
	}
	c.touch(f.key)
}

func (f *DirectoryFragment) parentFragment() *DirectoryFragment {
	in := f.Inode()
	if in.parent == nil {
		return nil
	}
	return f.cache.mustFragment(in.parent.dir)
}

func (f *DirectoryFragment) evictable() bool {
	return f.itemCount == 0 &&
		f.hardPinned == 0 &&
		f.nestedHardPinned == 0 &&
		f.state == Unfrozen &&
		!f.HasWaiters()
}

func (f *DirectoryFragment) String() string {
	return fmt.Sprintf("[dir %s items=%d state=%s hard=%d nested=%d]",
		f.key, f.itemCount, f.state, f.hardPinned, f.nestedHardPinned)
}
