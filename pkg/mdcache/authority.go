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
	"sort"

	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils"
)

// AuthorityResolver places the dentries of hashed directories on cluster
// nodes. Implementations must be pure: every node has to reach the same
// answer for the same fragment and name.
type AuthorityResolver interface {
	DentryAuthority(dir types.FragKey, name string) types.NodeID
}

type HashResolver struct {
	nodes []types.NodeID
}

var _ AuthorityResolver = &HashResolver{}

// NewHashResolver builds the ring from the cluster membership. Nodes are
// sorted so the ring does not depend on how each node lists its peers.
func NewHashResolver(nodes []types.NodeID) *HashResolver {
	ring := make([]types.NodeID, len(nodes))
	copy(ring, nodes)
	sort.Slice(ring, func(i, j int) bool { return ring[i] < ring[j] })
	return &HashResolver{nodes: ring}
}

func (h *HashResolver) DentryAuthority(dir types.FragKey, name string) types.NodeID {
	if len(h.nodes) == 0 {
		return types.NodeNone
	}
	sum := utils.HashDentry(int64(dir.Ino), uint32(dir.Frag), name)
	return h.nodes[sum%uint32(len(h.nodes))]
}

// DentryAuthority returns the node that coordinates writes to name in this
// fragment.
func (f *DirectoryFragment) DentryAuthority(name string) types.NodeID {
	return f.cache.dentryAuthority(f.key, name)
}

// InodeAuthority is the authority of the inode's primary dentry; the root
// belongs to the configured root authority.
func (c *Cache) InodeAuthority(ino types.InodeID) types.NodeID {
	in := c.mustInode(ino)
	if in.parent == nil {
		return c.rootAuthority
	}
	return c.dentryAuthority(in.parent.dir, in.parent.name)
}

func (c *Cache) dentryAuthority(dir types.FragKey, name string) types.NodeID {
	for {
		in := c.mustInode(dir.Ino)
		switch in.dirAuth.Mode {
		case types.DirAuthExplicit:
			return in.dirAuth.Node
		case types.DirAuthHash:
			return c.resolver.DentryAuthority(dir, name)
		}
		if in.parent == nil {
			return c.rootAuthority
		}
		dir, name = in.parent.dir, in.parent.name
	}
}
