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
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/basenana/nanamds/pkg/events"
	"github.com/basenana/nanamds/pkg/types"
)

// FragmentStore persists fragment enumerations. The encoding is the store's
// business.
type FragmentStore interface {
	CommitFragment(ctx context.Context, rec *types.FragmentRecord) error
}

// Commit writes every cached fragment of ino and of all directories below it
// to store, children before their parents.
func (c *Cache) Commit(ctx context.Context, store FragmentStore, ino types.InodeID) error {
	if _, ok := c.inodes[ino]; !ok {
		return types.ErrNotFound
	}
	for _, f := range c.commitOrder(ino) {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := store.CommitFragment(ctx, f.Record())
		logOperationLatency("commit", start)
		if err != nil {
			return errors.Wrapf(err, "commit fragment %s", f.key)
		}
		f.dirty = false
		c.publish(events.ActionTypeCommit, f, types.ResultOK)
	}
	return nil
}

// commitOrder is the reverse of a pre-order walk, which puts every fragment
// after all of its descendants.
func (c *Cache) commitOrder(ino types.InodeID) []*DirectoryFragment {
	var (
		stack []*DirectoryFragment
		order []*DirectoryFragment
	)
	stack = c.pushFragments(stack, c.inodes[ino])
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, f)
		for _, name := range f.Names() {
			if child, ok := c.inodes[f.items[name].ino]; ok {
				stack = c.pushFragments(stack, child)
			}
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func (c *Cache) pushFragments(stack []*DirectoryFragment, in *Inode) []*DirectoryFragment {
	for _, frag := range in.Fragments() {
		if f, ok := c.frags[types.FragKey{Ino: in.id, Frag: frag}]; ok {
			stack = append(stack, f)
		}
	}
	return stack
}
