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
	"github.com/basenana/nanamds/pkg/events"
	"github.com/basenana/nanamds/pkg/types"
)

// Freeze requests exclusive access to the fragment and everything below it.
// With nothing pinned the fragment freezes at once and c fires before Freeze
// returns; otherwise the fragment is Freezing and c fires when the last pin
// at or below it drains.
func (f *DirectoryFragment) Freeze(c Completion) {
	cache := f.cache
	if f.state != Unfrozen {
		cache.bug("%s: freeze while %s", f, f.state)
	}

	if f.hardPinned+f.nestedHardPinned == 0 {
		f.state = Frozen
		cache.hardPinInode(f.Inode())
		freezeCounter.WithLabelValues("immediate").Inc()
		cache.logger.Debugw("frozen", "frag", f.key.String())
		cache.publish(events.ActionTypeFrozen, f, types.ResultOK)

		cache.finisher.add([]Completion{c}, types.ResultOK)
		cache.finisher.drain()
		return
	}

	f.state = Freezing
	f.waitingToFreeze = append(f.waitingToFreeze, c)
	freezeCounter.WithLabelValues("deferred").Inc()
	cache.logger.Debugw("freeze waiting for pins", "frag", f.key.String(),
		"hard", f.hardPinned, "nested", f.nestedHardPinned)
	cache.publish(events.ActionTypeFreeze, f, types.ResultOK)
}

// freezeFinish runs once the pins under a Freezing fragment reach zero. Every
// queued freeze requester is satisfied by the same transition.
func (c *Cache) freezeFinish(f *DirectoryFragment) {
	c.hardPinInode(f.Inode())

	waiters := f.waitingToFreeze
	f.waitingToFreeze = nil
	f.state = Frozen

	freezeCounter.WithLabelValues("finished").Inc()
	c.logger.Debugw("freeze finished", "frag", f.key.String(), "waiters", len(waiters))
	c.publish(events.ActionTypeFrozen, f, types.ResultOK)
	c.finisher.add(waiters, types.ResultOK)
}

// Unfreeze releases exclusivity and resumes every operation that queued on
// the fragment while it was frozen.
func (f *DirectoryFragment) Unfreeze() {
	c := f.cache
	if f.state != Frozen {
		c.bug("%s: unfreeze while %s", f, f.state)
	}
	f.state = Unfrozen
	c.hardUnpinInode(f.Inode())

	waiters := f.TakeWaiting(nil)
	c.logger.Debugw("unfrozen", "frag", f.key.String(), "waiters", len(waiters))
	c.publish(events.ActionTypeUnfreeze, f, types.ResultOK)
	c.finisher.add(waiters, types.ResultOK)
	c.finisher.drain()
}

// IsFreezeRoot reports whether this fragment itself is frozen, as opposed to
// lying under a frozen ancestor.
func (f *DirectoryFragment) IsFreezeRoot() bool {
	return f.state == Frozen
}

func (f *DirectoryFragment) IsFrozen() bool {
	for d := f; d != nil; d = d.parentFragment() {
		if d.state == Frozen {
			return true
		}
	}
	return false
}

func (f *DirectoryFragment) IsFreezing() bool {
	for d := f; d != nil; d = d.parentFragment() {
		if d.state == Freezing {
			return true
		}
	}
	return false
}

// AddFreezeWaiter parks c on the nearest frozen or freezing fragment at or
// above f, so a whole subtree resumes from one place. c fires at once when
// nothing above is frozen.
func (f *DirectoryFragment) AddFreezeWaiter(c Completion) {
	f.waitOnAncestor(c, func(d *DirectoryFragment) bool { return d.state != Unfrozen })
}

// AddHardPinWaiter parks c until the nearest frozen fragment at or above f
// thaws and hard pins are allowed again.
func (f *DirectoryFragment) AddHardPinWaiter(c Completion) {
	f.waitOnAncestor(c, func(d *DirectoryFragment) bool { return d.state == Frozen })
}

func (f *DirectoryFragment) waitOnAncestor(c Completion, match func(d *DirectoryFragment) bool) {
	for d := f; d != nil; d = d.parentFragment() {
		if match(d) {
			d.AddWaiter(c)
			return
		}
	}
	f.cache.finisher.add([]Completion{c}, types.ResultOK)
	f.cache.finisher.drain()
}
