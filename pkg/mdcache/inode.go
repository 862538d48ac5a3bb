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

// dentryRef is how an inode finds its way back up the tree: the fragment
// holding its primary dentry and the dentry's name.
type dentryRef struct {
	dir  types.FragKey
	name string
}

type Inode struct {
	cache   *Cache
	id      types.InodeID
	dirAuth types.DirAuth
	parent  *dentryRef
	frags   map[types.FragID]struct{}

	pins             pinSet
	hardPinned       int
	nestedHardPinned int
	popularity       DecayCounter
}

func (in *Inode) ID() types.InodeID {
	return in.id
}

func (in *Inode) DirAuth() types.DirAuth {
	return in.dirAuth
}

func (in *Inode) SetDirAuth(auth types.DirAuth) {
	in.dirAuth = auth
}

// Parent reports the fragment and name of the inode's primary dentry. The
// root and unlinked inodes have none.
func (in *Inode) Parent() (types.FragKey, string, bool) {
	if in.parent == nil {
		return types.FragKey{}, "", false
	}
	return in.parent.dir, in.parent.name, true
}

func (in *Inode) PinCount(r PinReason) int {
	return in.pins[r]
}

func (in *Inode) IsPinned(r PinReason) bool {
	return in.pins[r] > 0
}

func (in *Inode) Pinned() bool {
	return in.pins.total() > 0
}

func (in *Inode) HardPinned() int {
	return in.hardPinned
}

func (in *Inode) NestedHardPinned() int {
	return in.nestedHardPinned
}

func (in *Inode) Popularity(now time.Time) float64 {
	return in.popularity.Get(now)
}

func (in *Inode) IsDir() bool {
	return len(in.frags) > 0
}

func (in *Inode) Fragments() []types.FragID {
	result := make([]types.FragID, 0, len(in.frags))
	for frag := range in.frags {
		result = append(result, frag)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (in *Inode) get(r PinReason) {
	in.pins.get(r)
}

func (in *Inode) put(r PinReason) {
	if !in.pins.put(r) {
		in.cache.bug("%s: put %s pin without get", in, r)
	}
}

func (in *Inode) String() string {
	return fmt.Sprintf("[inode %d auth=%s pins=%s hard=%d nested=%d]",
		in.id, in.dirAuth, in.pins.String(), in.hardPinned, in.nestedHardPinned)
}
