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

// HardPin marks the fragment as in active use by an operation. While any
// hard pin is held at or below a fragment, that fragment cannot finish
// freezing.
func (f *DirectoryFragment) HardPin() {
	in := f.Inode()
	in.get(PinDirHardPin)
	f.hardPinned++

	in.nestedHardPinned++
	f.cache.propagateNested(in, 1)
}

func (f *DirectoryFragment) HardUnpin() {
	c := f.cache
	if f.hardPinned == 0 {
		c.bug("%s: hard unpin without hard pin", f)
	}
	in := f.Inode()
	f.hardPinned--
	in.put(PinDirHardPin)

	c.maybeFinishFreeze(f)

	in.nestedHardPinned--
	c.propagateNested(in, -1)
	c.finisher.drain()
}

// AdjustNestedHardPinned applies a pin delta that originated below this
// fragment and carries it on towards the root.
func (f *DirectoryFragment) AdjustNestedHardPinned(delta int) {
	c := f.cache
	f.nestedHardPinned += delta
	if f.nestedHardPinned < 0 {
		c.bug("%s: nested hard pins dropped below zero", f)
	}
	c.maybeFinishFreeze(f)

	in := f.Inode()
	in.nestedHardPinned += delta
	c.propagateNested(in, delta)
	c.finisher.drain()
}

// propagateNested walks from the fragment holding in's primary dentry up to
// the root, adding delta to every fragment and inode on the way.
func (c *Cache) propagateNested(in *Inode, delta int) {
	if in.nestedHardPinned < 0 {
		c.bug("%s: nested hard pins dropped below zero", in)
	}
	for in.parent != nil {
		dir := c.mustFragment(in.parent.dir)
		dir.nestedHardPinned += delta
		if dir.nestedHardPinned < 0 {
			c.bug("%s: nested hard pins dropped below zero", dir)
		}
		c.maybeFinishFreeze(dir)

		in = c.mustInode(dir.key.Ino)
		in.nestedHardPinned += delta
		if in.nestedHardPinned < 0 {
			c.bug("%s: nested hard pins dropped below zero", in)
		}
	}
}

// hardPinInode pins the inode itself. A frozen fragment holds one on its own
// inode, so an enclosing freeze sees the frozen subtree as active.
func (c *Cache) hardPinInode(in *Inode) {
	in.get(PinFreeze)
	in.hardPinned++
	c.propagateNested(in, 1)
}

func (c *Cache) hardUnpinInode(in *Inode) {
	if in.hardPinned == 0 {
		c.bug("%s: hard unpin without hard pin", in)
	}
	in.hardPinned--
	in.put(PinFreeze)
	c.propagateNested(in, -1)
}

func (c *Cache) maybeFinishFreeze(f *DirectoryFragment) {
	if len(f.waitingToFreeze) > 0 && f.hardPinned+f.nestedHardPinned == 0 {
		c.freezeFinish(f)
	}
}
