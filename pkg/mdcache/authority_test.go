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
	"github.com/basenana/nanamds/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TestAuthority", func() {
	var (
		cache *Cache
		root  *DirectoryFragment
		nodes = []types.NodeID{3, 1, 2}
	)
	BeforeEach(func() {
		cache, root = newTestCache(WithRootAuthority(7), WithResolver(NewHashResolver(nodes)))
	})

	Context("inherit from parent", func() {
		It("should fall back to the root authority", func() {
			sub := mkdir(cache, mkdir(cache, root, "a", 2), "b", 3)
			Expect(sub.DentryAuthority("x")).Should(Equal(types.NodeID(7)))
			Expect(cache.InodeAuthority(rootIno)).Should(Equal(types.NodeID(7)))
			Expect(cache.InodeAuthority(3)).Should(Equal(types.NodeID(7)))
		})
		It("should stop at the nearest explicit ancestor", func() {
			mid := mkdir(cache, root, "a", 2)
			mid.Inode().SetDirAuth(types.ExplicitNode(5))
			sub := mkdir(cache, mid, "b", 3)

			Expect(sub.DentryAuthority("x")).Should(Equal(types.NodeID(5)))
			Expect(cache.InodeAuthority(3)).Should(Equal(types.NodeID(5)))
			Expect(cache.InodeAuthority(2)).Should(Equal(types.NodeID(7)))
		})
	})

	Context("explicit root", func() {
		It("should use the explicit node", func() {
			root.Inode().SetDirAuth(types.ExplicitNode(4))
			Expect(root.DentryAuthority("x")).Should(Equal(types.NodeID(4)))
		})
	})

	Context("hashed directory", func() {
		It("should be deterministic and within the cluster", func() {
			hashed := mkdir(cache, root, "h", 2)
			hashed.Inode().SetDirAuth(types.Hashed())

			other := NewHashResolver([]types.NodeID{1, 2, 3})
			seen := map[types.NodeID]bool{}
			for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
				n := hashed.DentryAuthority(name)
				Expect(n).Should(BeElementOf(nodes[0], nodes[1], nodes[2]))
				Expect(n).Should(Equal(hashed.DentryAuthority(name)))
				Expect(n).Should(Equal(other.DentryAuthority(hashed.Key(), name)))
				seen[n] = true
			}
			Expect(len(seen)).Should(BeNumerically(">=", 1))
		})
		It("should resolve to no node on an empty ring", func() {
			Expect(NewHashResolver(nil).DentryAuthority(rootKey(), "a")).Should(Equal(types.NodeNone))
		})
	})
})
