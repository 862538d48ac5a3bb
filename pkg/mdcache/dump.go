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
	"io"
	"strings"

	"github.com/basenana/nanamds/pkg/types"
)

type dumpFrame struct {
	dir   *DirectoryFragment
	names []string
	next  int
	depth int
}

// Dump writes the cached tree below ino, one dentry per line indented by
// depth. Directories end with '/', incomplete fragments with "..." and dirty
// ones with "[dirty]".
func (c *Cache) Dump(w io.Writer, ino types.InodeID) error {
	in, ok := c.inodes[ino]
	if !ok {
		return types.ErrNotFound
	}

	var stack []dumpFrame
	stack = c.pushDumpFrames(stack, in, 0)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ind := strings.Repeat("\t", top.depth)

		if top.next < len(top.names) {
			name := top.names[top.next]
			top.next++
			depth := top.depth
			d := top.dir.items[name]

			isdir := ""
			child, cached := c.inodes[d.ino]
			if cached && child.IsDir() {
				isdir = "/"
			}
			if _, err := fmt.Fprintf(w, "%s%d %s%s\n", ind, d.ino, name, isdir); err != nil {
				return err
			}
			if cached {
				stack = c.pushDumpFrames(stack, child, depth+1)
			}
			continue
		}

		if !top.dir.complete {
			if _, err := fmt.Fprintf(w, "%s...\n", ind); err != nil {
				return err
			}
		}
		if top.dir.dirty {
			if _, err := fmt.Fprintf(w, "%s[dirty]\n", ind); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

func (c *Cache) pushDumpFrames(stack []dumpFrame, in *Inode, depth int) []dumpFrame {
	frags := in.Fragments()
	for i := len(frags) - 1; i >= 0; i-- {
		f, ok := c.frags[types.FragKey{Ino: in.id, Frag: frags[i]}]
		if !ok {
			continue
		}
		stack = append(stack, dumpFrame{dir: f, names: f.Names(), depth: depth})
	}
	return stack
}
