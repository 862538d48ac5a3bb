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

	"github.com/hyponet/eventbus"
	"go.uber.org/zap"

	"github.com/basenana/nanamds/pkg/events"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils"
	"github.com/basenana/nanamds/utils/logger"
)

const defaultPopularityHalfLife = time.Second * 5

// Cache is the arena owning every cached inode and directory fragment of one
// metadata shard. It is not safe for concurrent use: one control flow owns it
// at a time and callbacks resume through completions.
type Cache struct {
	inodes  map[types.InodeID]*Inode
	frags   map[types.FragKey]*DirectoryFragment
	rootIno types.InodeID
	hasRoot bool

	resolver      AuthorityResolver
	rootAuthority types.NodeID
	halfLife      time.Duration
	now           func() time.Time
	trimmer       *trimmer
	finisher      finisher
	logger        *zap.SugaredLogger
}

type Option func(c *Cache)

func WithResolver(r AuthorityResolver) Option {
	return func(c *Cache) {
		c.resolver = r
	}
}

func WithRootAuthority(node types.NodeID) Option {
	return func(c *Cache) {
		c.rootAuthority = node
	}
}

func WithPopularityHalfLife(d time.Duration) Option {
	return func(c *Cache) {
		c.halfLife = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithTrimSize bounds how many fragments stay in the recently used set
// before they become candidates for Trim. Zero disables trimming.
func WithTrimSize(size int) Option {
	return func(c *Cache) {
		if size > 0 {
			c.trimmer = newTrimmer(size)
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		inodes:        make(map[types.InodeID]*Inode),
		frags:         make(map[types.FragKey]*DirectoryFragment),
		resolver:      NewHashResolver([]types.NodeID{0}),
		rootAuthority: 0,
		halfLife:      defaultPopularityHalfLife,
		now:           time.Now,
		logger:        logger.NewLogger("mdcache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) AddInode(id types.InodeID, auth types.DirAuth) *Inode {
	if _, ok := c.inodes[id]; ok {
		c.bug("inode %d already cached", id)
	}
	in := &Inode{
		cache:      c,
		id:         id,
		dirAuth:    auth,
		frags:      make(map[types.FragID]struct{}),
		popularity: NewDecayCounter(c.halfLife),
	}
	c.inodes[id] = in
	return in
}

// NewInode allocates a fresh cluster unique inode number.
func (c *Cache) NewInode(auth types.DirAuth) *Inode {
	return c.AddInode(types.InodeID(utils.GenerateNewID()), auth)
}

func (c *Cache) Inode(id types.InodeID) (*Inode, bool) {
	in, ok := c.inodes[id]
	return in, ok
}

// RemoveInode drops an inode that has no parent, no fragments and no pins.
func (c *Cache) RemoveInode(id types.InodeID) error {
	in, ok := c.inodes[id]
	if !ok {
		return types.ErrNotFound
	}
	if in.parent != nil || len(in.frags) > 0 || in.Pinned() || in.nestedHardPinned > 0 {
		return types.ErrNotEvictable
	}
	delete(c.inodes, id)
	if c.hasRoot && c.rootIno == id {
		c.hasRoot = false
	}
	return nil
}

func (c *Cache) SetRoot(id types.InodeID) {
	in := c.mustInode(id)
	if in.parent != nil {
		c.bug("%s: root inode has a parent dentry", in)
	}
	c.rootIno = id
	c.hasRoot = true
}

func (c *Cache) Root() (*Inode, bool) {
	if !c.hasRoot {
		return nil, false
	}
	return c.Inode(c.rootIno)
}

// OpenFragment returns the cached fragment, creating an empty one on first
// access.
func (c *Cache) OpenFragment(key types.FragKey) *DirectoryFragment {
	if f, ok := c.frags[key]; ok {
		c.touch(key)
		return f
	}
	in := c.mustInode(key.Ino)
	f := newFragment(c, key)
	c.frags[key] = f
	in.frags[key.Frag] = struct{}{}
	fragmentGauge.Inc()
	c.touch(key)
	return f
}

func (c *Cache) Fragment(key types.FragKey) (*DirectoryFragment, bool) {
	f, ok := c.frags[key]
	return f, ok
}

func (c *Cache) Fragments() []*DirectoryFragment {
	result := make([]*DirectoryFragment, 0, len(c.frags))
	for _, f := range c.frags {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].key.Ino != result[j].key.Ino {
			return result[i].key.Ino < result[j].key.Ino
		}
		return result[i].key.Frag < result[j].key.Frag
	})
	return result
}

// Link adds a primary dentry for child under name and points the child back
// at it.
func (c *Cache) Link(dir types.FragKey, name string, child types.InodeID) (*Dentry, error) {
	f, ok := c.frags[dir]
	if !ok {
		return nil, types.ErrNoFragment
	}
	if _, ok = f.items[name]; ok {
		return nil, types.ErrIsExist
	}
	in := c.mustInode(child)
	if in.parent != nil {
		c.bug("%s: already linked at %s/%s", in, in.parent.dir, in.parent.name)
	}
	if c.hasRoot && c.rootIno == child {
		c.bug("%s: cannot link the root", in)
	}
	if c.isAncestor(child, dir) {
		c.bug("%s: link under %s would loop", in, dir)
	}

	d := NewDentry(name, child)
	f.AddChild(d)
	in.parent = &dentryRef{dir: dir, name: name}
	f.MarkDirty()

	// hard pins held at or below child now count in its new ancestors
	if n := in.hardPinned + in.nestedHardPinned; n > 0 {
		c.propagateNested(in, n)
		c.finisher.drain()
	}
	return d, nil
}

// Unlink removes the dentry for name. Hard pins held at or below the child
// leave the ancestors with it, which may let a pending freeze above finish.
func (c *Cache) Unlink(dir types.FragKey, name string) error {
	f, ok := c.frags[dir]
	if !ok {
		return types.ErrNoFragment
	}
	d, ok := f.items[name]
	if !ok {
		return types.ErrNotFound
	}
	var carried int
	if in, ok := c.inodes[d.ino]; ok {
		if in.parent != nil && in.parent.dir == dir && in.parent.name == name {
			if carried = in.hardPinned + in.nestedHardPinned; carried > 0 {
				c.propagateNested(in, -carried)
			}
			in.parent = nil
		}
	}
	f.RemoveChild(d)
	f.MarkDirty()
	if carried > 0 {
		c.finisher.drain()
	}
	return nil
}

// LoadFragment fills a fragment from its persisted enumeration. Child inodes
// not yet cached are added with inherited authority.
func (c *Cache) LoadFragment(rec *types.FragmentRecord) *DirectoryFragment {
	start := time.Now()
	defer logOperationLatency("load_fragment", start)

	f := c.OpenFragment(rec.Key)
	for _, dr := range rec.Dentries {
		if _, ok := f.items[dr.Name]; ok {
			continue
		}
		in, ok := c.inodes[dr.Ino]
		if !ok {
			in = c.AddInode(dr.Ino, types.InheritParent())
		}
		if in.parent != nil {
			c.logger.Warnw("skip dentry of inode linked elsewhere", "frag", rec.Key.String(),
				"name", dr.Name, "ino", dr.Ino)
			continue
		}
		if c.isAncestor(dr.Ino, rec.Key) {
			c.logger.Warnw("skip dentry linking an ancestor", "frag", rec.Key.String(),
				"name", dr.Name, "ino", dr.Ino)
			continue
		}
		if _, err := c.Link(rec.Key, dr.Name, dr.Ino); err != nil {
			c.logger.Warnw("link persisted dentry failed", "frag", rec.Key.String(), "name", dr.Name, "err", err)
		}
	}
	f.MarkComplete()
	f.dirty = false
	return f
}

// isAncestor reports whether ino is dir's own inode or sits above it.
func (c *Cache) isAncestor(ino types.InodeID, dir types.FragKey) bool {
	for cur := dir.Ino; ; {
		if cur == ino {
			return true
		}
		in := c.mustInode(cur)
		if in.parent == nil {
			return false
		}
		cur = in.parent.dir.Ino
	}
}

// CloseFragment tears down a fragment that has no dentries and no hard pins.
// Outstanding completions fire with ResultCanceled, and a frozen fragment
// gives up the pin it held on its inode.
func (c *Cache) CloseFragment(key types.FragKey) error {
	f, ok := c.frags[key]
	if !ok {
		return types.ErrNoFragment
	}
	if f.itemCount > 0 || f.hardPinned > 0 || f.nestedHardPinned > 0 {
		return types.ErrNotEvictable
	}
	c.closeFragment(f)
	c.finisher.drain()
	return nil
}

func (c *Cache) closeFragment(f *DirectoryFragment) {
	in := f.Inode()

	canceled := f.TakeWaiting(nil)
	canceled = append(canceled, f.waitingToFreeze...)
	f.waitingToFreeze = nil
	if len(canceled) > 0 {
		freezeCounter.WithLabelValues("canceled").Inc()
	}

	if f.state == Frozen {
		f.state = Unfrozen
		c.hardUnpinInode(in)
	}
	f.state = Unfrozen

	delete(c.frags, f.key)
	delete(in.frags, f.key.Frag)
	fragmentGauge.Dec()
	if c.trimmer != nil {
		c.trimmer.forget(f.key)
	}

	c.logger.Debugw("fragment closed", "frag", f.key.String(), "canceled", len(canceled))
	c.publish(events.ActionTypeClose, f, types.ResultCanceled)
	c.finisher.add(canceled, types.ResultCanceled)
}

type Stats struct {
	Inodes    int `json:"inodes"`
	Fragments int `json:"fragments"`
	Dentries  int `json:"dentries"`
	Frozen    int `json:"frozen"`
	Freezing  int `json:"freezing"`
	Waiters   int `json:"waiters"`
}

func (c *Cache) Stats() Stats {
	st := Stats{Inodes: len(c.inodes), Fragments: len(c.frags)}
	for _, f := range c.frags {
		st.Dentries += f.itemCount
		st.Waiters += f.WaiterCount()
		switch f.state {
		case Frozen:
			st.Frozen++
		case Freezing:
			st.Freezing++
		}
	}
	return st
}

func (c *Cache) mustInode(id types.InodeID) *Inode {
	in, ok := c.inodes[id]
	if !ok {
		c.bug("inode %d not cached", id)
	}
	return in
}

func (c *Cache) mustFragment(key types.FragKey) *DirectoryFragment {
	f, ok := c.frags[key]
	if !ok {
		c.bug("fragment %s not cached", key)
	}
	return f
}

func (c *Cache) touch(key types.FragKey) {
	if c.trimmer != nil {
		c.trimmer.touch(key)
	}
}

func (c *Cache) publish(actionType string, f *DirectoryFragment, r types.Result) {
	eventbus.Publish(events.FragmentActionTopic(actionType), events.BuildFragmentEvent(actionType, types.EventData{
		Key:       f.key,
		State:     f.state.String(),
		ItemCount: f.itemCount,
		Result:    r,
	}))
}

// bug reports a broken caller invariant. These are programming defects, not
// runtime conditions, so the process stops here.
func (c *Cache) bug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Errorw("mdcache invariant violated", "msg", msg)
	panic(msg)
}
