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
	"math/rand"

	"github.com/basenana/nanamds/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TestFragmentDentries", func() {
	var (
		cache *Cache
		root  *DirectoryFragment
	)
	BeforeEach(func() {
		cache, root = newTestCache()
	})

	Context("add and remove children", func() {
		It("should hold the child pin only while items exist", func() {
			in := root.Inode()
			Expect(in.IsPinned(PinChild)).Should(BeFalse())

			a := NewDentry("a", 11)
			b := NewDentry("bb", 12)
			root.AddChild(a)
			Expect(in.PinCount(PinChild)).Should(Equal(1))
			root.AddChild(b)
			Expect(in.PinCount(PinChild)).Should(Equal(1))
			Expect(root.ItemCount()).Should(Equal(2))
			Expect(root.NameBytes()).Should(Equal(3))

			owner, ok := a.Dir()
			Expect(ok).Should(BeTrue())
			Expect(owner).Should(Equal(root.Key()))

			root.RemoveChild(a)
			Expect(in.PinCount(PinChild)).Should(Equal(1))
			root.RemoveChild(b)
			Expect(root.ItemCount()).Should(Equal(0))
			Expect(root.NameBytes()).Should(Equal(0))
			Expect(in.IsPinned(PinChild)).Should(BeFalse())
		})
		It("remove a should keep b", func() {
			mkfile(cache, root, "a", 11)
			mkfile(cache, root, "b", 12)

			Expect(cache.Unlink(root.Key(), "a")).Should(BeNil())

			_, ok := root.Lookup("a")
			Expect(ok).Should(BeFalse())
			d, ok := root.Lookup("b")
			Expect(ok).Should(BeTrue())
			Expect(d.Ino()).Should(Equal(types.InodeID(12)))
			Expect(root.ItemCount()).Should(Equal(1))

			in, _ := cache.Inode(11)
			_, _, linked := in.Parent()
			Expect(linked).Should(BeFalse())
		})
		It("duplicate names should panic", func() {
			root.AddChild(NewDentry("a", 11))
			Expect(func() { root.AddChild(NewDentry("a", 12)) }).Should(Panic())
		})
		It("removing a foreign dentry should panic", func() {
			Expect(func() { root.RemoveChild(NewDentry("ghost", 13)) }).Should(Panic())
		})
		It("putting a pin that was never taken should panic", func() {
			Expect(func() { root.Inode().put(PinChild) }).Should(Panic())
		})
		It("link and unlink should report expected misses", func() {
			mkfile(cache, root, "a", 11)
			cache.AddInode(12, types.InheritParent())
			_, err := cache.Link(root.Key(), "a", 12)
			Expect(err).Should(Equal(types.ErrIsExist))
			Expect(cache.Unlink(root.Key(), "missing")).Should(Equal(types.ErrNotFound))
			Expect(cache.Unlink(types.FragKey{Ino: 99}, "a")).Should(Equal(types.ErrNoFragment))
		})
	})

	Context("enumerate dentries", func() {
		It("should be ordered by name", func() {
			mkfile(cache, root, "c", 13)
			mkfile(cache, root, "a", 11)
			mkfile(cache, root, "b", 12)

			Expect(root.Names()).Should(Equal([]string{"a", "b", "c"}))
			Expect(root.Dentries()).Should(Equal([]types.DentryRecord{
				{Name: "a", Ino: 11}, {Name: "b", Ino: 12}, {Name: "c", Ino: 13},
			}))
			Expect(root.IsDirty()).Should(BeTrue())
		})
	})

	Context("random add and remove sequence", func() {
		It("should keep item count equal to present dentries", func() {
			rnd := rand.New(rand.NewSource(42))
			present := map[string]*Dentry{}
			for i := 0; i < 500; i++ {
				name := fmt.Sprintf("n%d", rnd.Intn(40))
				if d, ok := present[name]; ok {
					root.RemoveChild(d)
					delete(present, name)
				} else {
					d = NewDentry(name, types.InodeID(100+i))
					root.AddChild(d)
					present[name] = d
				}

				Expect(root.ItemCount()).Should(Equal(len(present)))
				Expect(root.Inode().IsPinned(PinChild)).Should(Equal(len(present) > 0))
				_, ok := root.Lookup(name)
				_, want := present[name]
				Expect(ok).Should(Equal(want))
			}
		})
	})
})
