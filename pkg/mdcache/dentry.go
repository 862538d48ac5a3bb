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

	"github.com/basenana/nanamds/pkg/types"
)

// Dentry is a name to inode edge. It references its child inode and its
// owning fragment by id only.
type Dentry struct {
	name  string
	ino   types.InodeID
	dir   types.FragKey
	owned bool
}

func NewDentry(name string, ino types.InodeID) *Dentry {
	return &Dentry{name: name, ino: ino}
}

func (d *Dentry) Name() string {
	return d.name
}

func (d *Dentry) Ino() types.InodeID {
	return d.ino
}

// Dir returns the owning fragment; false until the dentry is added to one.
func (d *Dentry) Dir() (types.FragKey, bool) {
	return d.dir, d.owned
}

func (d *Dentry) String() string {
	return fmt.Sprintf("[dentry %s/%s -> %d]", d.dir, d.name, d.ino)
}
