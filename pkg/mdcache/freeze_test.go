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

var _ = Describe("TestFreeze", func() {
	var (
		cache *Cache
		root  *DirectoryFragment
	)
	BeforeEach(func() {
		cache, root = newTestCache()
	})

	Context("freeze an idle fragment", func() {
		It("should freeze at once and thaw on unfreeze", func() {
			rec := &recorder{}
			root.Freeze(rec)
			Expect(rec.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(root.State()).Should(Equal(Frozen))
			Expect(root.IsFreezeRoot()).Should(BeTrue())
			Expect(root.Inode().HardPinned()).Should(Equal(1))
			Expect(root.Inode().IsPinned(PinFreeze)).Should(BeTrue())

			w1, w2 := &recorder{}, &recorder{}
			root.AddWaiter(w1)
			root.AddDentryWaiter("a", w2)

			root.Unfreeze()
			Expect(root.State()).Should(Equal(Unfrozen))
			Expect(w1.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(w2.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(rec.fired()).Should(Equal(1))
			Expect(root.Inode().HardPinned()).Should(Equal(0))
			Expect(root.Inode().Pinned()).Should(BeFalse())
		})
		It("freeze twice should panic", func() {
			root.Freeze(&recorder{})
			Expect(func() { root.Freeze(&recorder{}) }).Should(Panic())
		})
		It("unfreeze an unfrozen fragment should panic", func() {
			Expect(func() { root.Unfreeze() }).Should(Panic())
		})
	})

	Context("freeze while hard pinned", func() {
		It("should wait for the last hard unpin", func() {
			rec := &recorder{}
			root.HardPin()
			root.HardPin()

			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))
			Expect(root.IsFreezing()).Should(BeTrue())
			Expect(rec.fired()).Should(Equal(0))

			root.HardUnpin()
			Expect(root.State()).Should(Equal(Freezing))
			Expect(rec.fired()).Should(Equal(0))

			root.HardUnpin()
			Expect(root.State()).Should(Equal(Frozen))
			Expect(rec.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(root.HardPinned()).Should(Equal(0))
		})
		It("should wait for nested pins reported from below", func() {
			rec := &recorder{}
			root.AdjustNestedHardPinned(2)
			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))

			root.AdjustNestedHardPinned(-1)
			Expect(rec.fired()).Should(Equal(0))
			root.AdjustNestedHardPinned(-1)
			Expect(rec.fired()).Should(Equal(1))
			Expect(root.State()).Should(Equal(Frozen))
		})
		It("hard unpin without a hard pin should panic", func() {
			Expect(func() { root.HardUnpin() }).Should(Panic())
		})
	})

	Context("freeze a parent of a pinned child", func() {
		var child *DirectoryFragment
		BeforeEach(func() {
			child = mkdir(cache, root, "sub", 2)
		})

		It("should finish when the child drops its pin", func() {
			rec := &recorder{}
			child.HardPin()
			Expect(root.NestedHardPinned()).Should(Equal(1))

			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))
			Expect(child.IsFreezing()).Should(BeTrue())
			Expect(child.IsFrozen()).Should(BeFalse())

			child.HardUnpin()
			Expect(rec.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(root.State()).Should(Equal(Frozen))
			Expect(child.IsFrozen()).Should(BeTrue())
			Expect(child.IsFreezeRoot()).Should(BeFalse())
			Expect(child.IsFreezing()).Should(BeFalse())
		})
		It("should wait for a frozen child to thaw", func() {
			childRec, rootRec := &recorder{}, &recorder{}
			child.Freeze(childRec)
			Expect(childRec.fired()).Should(Equal(1))
			Expect(root.NestedHardPinned()).Should(Equal(1))

			root.Freeze(rootRec)
			Expect(root.State()).Should(Equal(Freezing))

			child.Unfreeze()
			Expect(rootRec.fired()).Should(Equal(1))
			Expect(root.State()).Should(Equal(Frozen))
		})
		It("frozen state should be seen through every ancestor", func() {
			grand := mkdir(cache, child, "deeper", 3)
			root.Freeze(&recorder{})
			Expect(grand.IsFrozen()).Should(BeTrue())
			Expect(grand.IsFreezeRoot()).Should(BeFalse())
		})
	})

	Context("hard pin balance", func() {
		It("should return every counter to zero", func() {
			mid := mkdir(cache, root, "mid", 2)
			leaf := mkdir(cache, mid, "leaf", 3)

			for i := 0; i < 5; i++ {
				leaf.HardPin()
			}
			Expect(leaf.HardPinned()).Should(Equal(5))
			Expect(mid.NestedHardPinned()).Should(Equal(5))
			Expect(root.NestedHardPinned()).Should(Equal(5))
			Expect(root.Inode().NestedHardPinned()).Should(Equal(5))

			for i := 0; i < 5; i++ {
				leaf.HardUnpin()
			}
			for _, f := range []*DirectoryFragment{root, mid, leaf} {
				Expect(f.HardPinned()).Should(Equal(0))
				Expect(f.NestedHardPinned()).Should(Equal(0))
				Expect(f.Inode().NestedHardPinned()).Should(Equal(0))
				Expect(f.Inode().IsPinned(PinDirHardPin)).Should(BeFalse())
			}
		})
	})

	Context("waiting on a frozen ancestor", func() {
		var leaf *DirectoryFragment
		BeforeEach(func() {
			leaf = mkdir(cache, mkdir(cache, root, "mid", 2), "leaf", 3)
		})

		It("freeze waiter should fire at once without a frozen ancestor", func() {
			rec := &recorder{}
			leaf.AddFreezeWaiter(rec)
			Expect(rec.results).Should(Equal([]types.Result{types.ResultOK}))
		})
		It("freeze waiter should park on the frozen root", func() {
			rec := &recorder{}
			root.Freeze(&recorder{})
			leaf.AddFreezeWaiter(rec)
			Expect(rec.fired()).Should(Equal(0))
			Expect(root.WaiterCount()).Should(Equal(1))
			Expect(leaf.WaiterCount()).Should(Equal(0))

			root.Unfreeze()
			Expect(rec.results).Should(Equal([]types.Result{types.ResultOK}))
		})
		It("freeze waiter should park on a freezing ancestor", func() {
			rec := &recorder{}
			root.HardPin()
			root.Freeze(&recorder{})
			leaf.AddFreezeWaiter(rec)
			Expect(rec.fired()).Should(Equal(0))

			root.HardUnpin()
			root.Unfreeze()
			Expect(rec.fired()).Should(Equal(1))
		})
		It("hard pin waiter should ignore a freezing ancestor", func() {
			rec := &recorder{}
			root.HardPin()
			root.Freeze(&recorder{})
			leaf.AddHardPinWaiter(rec)
			Expect(rec.fired()).Should(Equal(1))
			root.HardUnpin()
		})
		It("hard pin waiter should park on a frozen ancestor", func() {
			rec := &recorder{}
			root.Freeze(&recorder{})
			leaf.AddHardPinWaiter(rec)
			Expect(rec.fired()).Should(Equal(0))

			root.Unfreeze()
			Expect(rec.fired()).Should(Equal(1))
		})
	})

	Context("completions that call back into the cache", func() {
		It("should fire each completion exactly once", func() {
			w := &recorder{}
			root.AddWaiter(w)

			root.Freeze(CompletionFunc(func(r types.Result) {
				Expect(r).Should(Equal(types.ResultOK))
				root.Unfreeze()
			}))
			Expect(root.State()).Should(Equal(Unfrozen))
			Expect(w.results).Should(Equal([]types.Result{types.ResultOK}))
			Expect(cache.finisher.pending()).Should(Equal(0))
		})
		It("should run the freeze completion after the pin bookkeeping", func() {
			var seen int
			root.HardPin()
			root.Freeze(CompletionFunc(func(r types.Result) {
				seen = root.Inode().HardPinned()
			}))
			root.HardUnpin()
			Expect(seen).Should(Equal(1))
		})
	})

	Context("link and unlink a hard pinned subtree", func() {
		var sub *DirectoryFragment
		BeforeEach(func() {
			cache.AddInode(2, types.InheritParent())
			sub = cache.OpenFragment(types.FragKey{Ino: 2, Frag: types.RootFrag})
		})

		It("link should carry pins held below the child", func() {
			sub.HardPin()
			_, err := cache.Link(root.Key(), "sub", 2)
			Expect(err).Should(BeNil())
			Expect(root.NestedHardPinned()).Should(Equal(1))
			Expect(root.Inode().NestedHardPinned()).Should(Equal(1))

			rec := &recorder{}
			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))
			Expect(rec.fired()).Should(Equal(0))

			sub.HardUnpin()
			Expect(root.State()).Should(Equal(Frozen))
			Expect(rec.fired()).Should(Equal(1))

			root.Unfreeze()
			Expect(root.NestedHardPinned()).Should(Equal(0))
			Expect(root.Inode().NestedHardPinned()).Should(Equal(0))
			Expect(root.Inode().HardPinned()).Should(Equal(0))
		})
		It("link should carry the pin of a frozen child", func() {
			sub.Freeze(&recorder{})
			Expect(sub.State()).Should(Equal(Frozen))
			_, err := cache.Link(root.Key(), "sub", 2)
			Expect(err).Should(BeNil())
			Expect(root.NestedHardPinned()).Should(Equal(1))

			rec := &recorder{}
			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))

			sub.Unfreeze()
			Expect(root.State()).Should(Equal(Frozen))
			Expect(rec.fired()).Should(Equal(1))
		})
		It("unlink should take the pins out and finish a pending freeze", func() {
			_, err := cache.Link(root.Key(), "sub", 2)
			Expect(err).Should(BeNil())
			sub.HardPin()

			rec := &recorder{}
			root.Freeze(rec)
			Expect(root.State()).Should(Equal(Freezing))

			Expect(cache.Unlink(root.Key(), "sub")).Should(BeNil())
			Expect(root.State()).Should(Equal(Frozen))
			Expect(rec.fired()).Should(Equal(1))
			Expect(root.NestedHardPinned()).Should(Equal(0))

			sub.HardUnpin()
			Expect(sub.HardPinned()).Should(Equal(0))
			Expect(root.NestedHardPinned()).Should(Equal(0))
		})
	})

	Context("link that would loop", func() {
		var sub, leaf *DirectoryFragment
		BeforeEach(func() {
			cache.AddInode(2, types.InheritParent())
			sub = cache.OpenFragment(types.FragKey{Ino: 2, Frag: types.RootFrag})
			leaf = mkdir(cache, sub, "c", 3)
		})

		It("linking a directory into itself should panic", func() {
			Expect(func() { _, _ = cache.Link(sub.Key(), "self", 2) }).Should(Panic())
			Expect(sub.IsFrozen()).Should(BeFalse())
			_, ok := sub.Lookup("self")
			Expect(ok).Should(BeFalse())
		})
		It("linking a directory below itself should panic", func() {
			Expect(func() { _, _ = cache.Link(leaf.Key(), "up", 2) }).Should(Panic())
			Expect(leaf.IsFreezing()).Should(BeFalse())
			Expect(leaf.ItemCount()).Should(Equal(0))
		})
		It("loading a fragment should skip dentries that loop", func() {
			f := cache.LoadFragment(&types.FragmentRecord{
				Key: leaf.Key(),
				Dentries: []types.DentryRecord{
					{Name: "up", Ino: 2},
					{Name: "x", Ino: 5},
				},
			})
			Expect(f.Names()).Should(Equal([]string{"x"}))
			Expect(f.IsFrozen()).Should(BeFalse())
		})
	})
})
