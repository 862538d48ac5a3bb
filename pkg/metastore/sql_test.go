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

package metastore

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/basenana/nanamds/config"
	"github.com/basenana/nanamds/pkg/mdcache"
	"github.com/basenana/nanamds/pkg/metastore/db"
	"github.com/basenana/nanamds/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TestSqliteFragmentOperation", func() {
	var sqlite = buildNewSqliteMetaStore("test_fragment.db")
	rootKey := types.FragKey{Ino: 1, Frag: types.RootFrag}

	Context("commit a new fragment", func() {
		It("should be succeed", func() {
			rec := &types.FragmentRecord{
				Key:       rootKey,
				Dentries:  []types.DentryRecord{{Name: "a", Ino: 2}, {Name: "b", Ino: 3}},
				UpdatedAt: time.Now(),
			}
			Expect(sqlite.CommitFragment(context.TODO(), rec)).Should(BeNil())
			Expect(rec.Version).Should(Equal(int64(1)))

			loaded, err := sqlite.LoadFragment(context.TODO(), rootKey)
			Expect(err).Should(BeNil())
			Expect(loaded.Version).Should(Equal(int64(1)))
			Expect(loaded.Dentries).Should(Equal(rec.Dentries))
		})
	})

	Context("commit an existing fragment again", func() {
		It("should replace the dentries and bump the version", func() {
			rec := &types.FragmentRecord{
				Key:       rootKey,
				Dentries:  []types.DentryRecord{{Name: "b", Ino: 3}},
				UpdatedAt: time.Now(),
			}
			Expect(sqlite.CommitFragment(context.TODO(), rec)).Should(BeNil())
			Expect(rec.Version).Should(Equal(int64(2)))

			loaded, err := sqlite.LoadFragment(context.TODO(), rootKey)
			Expect(err).Should(BeNil())
			Expect(loaded.Dentries).Should(Equal([]types.DentryRecord{{Name: "b", Ino: 3}}))
		})
	})

	Context("commit a large fragment", func() {
		It("should survive compression", func() {
			key := types.FragKey{Ino: 100, Frag: 1}
			rec := &types.FragmentRecord{Key: key, UpdatedAt: time.Now()}
			for i := 0; i < 512; i++ {
				rec.Dentries = append(rec.Dentries, types.DentryRecord{
					Name: fmt.Sprintf("file-%04d.log", i), Ino: types.InodeID(1000 + i)})
			}
			Expect(sqlite.CommitFragment(context.TODO(), rec)).Should(BeNil())

			loaded, err := sqlite.LoadFragment(context.TODO(), key)
			Expect(err).Should(BeNil())
			Expect(loaded.Dentries).Should(Equal(rec.Dentries))
		})
	})

	Context("list and delete fragments", func() {
		It("should be succeed", func() {
			keys, err := sqlite.ListFragments(context.TODO(), 0)
			Expect(err).Should(BeNil())
			Expect(keys).Should(ContainElements(rootKey, types.FragKey{Ino: 100, Frag: 1}))

			keys, err = sqlite.ListFragments(context.TODO(), 100)
			Expect(err).Should(BeNil())
			Expect(keys).Should(Equal([]types.FragKey{{Ino: 100, Frag: 1}}))

			Expect(sqlite.DeleteFragment(context.TODO(), types.FragKey{Ino: 100, Frag: 1})).Should(BeNil())
			Expect(sqlite.DeleteFragment(context.TODO(), types.FragKey{Ino: 100, Frag: 1})).Should(Equal(types.ErrNotFound))
			_, err = sqlite.LoadFragment(context.TODO(), types.FragKey{Ino: 100, Frag: 1})
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})

	Context("system info", func() {
		It("should count stored fragments", func() {
			info, err := sqlite.SystemInfo(context.TODO())
			Expect(err).Should(BeNil())
			Expect(info.ClusterID).ShouldNot(BeEmpty())
			Expect(info.FragmentCount).Should(Equal(int64(1)))
			Expect(info.DentryCount).Should(Equal(int64(1)))
		})
	})
})

var _ = Describe("TestSqliteInodeMetadata", func() {
	var sqlite = buildNewSqliteMetaStore("test_inode_metadata.db")
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	Context("accumulate object observations", func() {
		It("should only ever raise values", func() {
			ctx := context.TODO()
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 10, ObjID: 3, ObjSize: 100, MTime: base})).Should(BeNil())
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 10, ObjID: 1, ObjSize: 4096, MTime: base.Add(time.Hour)})).Should(BeNil())
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 10, ObjID: 2, ObjSize: 10, MTime: base.Add(-time.Hour)})).Should(BeNil())

			md, err := sqlite.GetInodeMetadata(ctx, 10)
			Expect(err).Should(BeNil())
			Expect(md.CeilingID).Should(Equal(uint64(3)))
			Expect(md.CeilingSize).Should(Equal(uint64(100)))
			Expect(md.MaxSize).Should(Equal(uint64(4096)))
			Expect(md.MTime.Equal(base.Add(time.Hour))).Should(BeTrue())
		})
		It("should compare ids and sizes as unsigned", func() {
			ctx := context.TODO()
			hugeID := uint64(1)<<63 + 1
			hugeSize := uint64(1)<<63 + 7
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 11, ObjID: 5, ObjSize: 1, MTime: base})).Should(BeNil())
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 11, ObjID: hugeID, ObjSize: hugeSize, MTime: base})).Should(BeNil())
			Expect(sqlite.AccumulateInodeMetadata(ctx, types.AccumulateArgs{
				Ino: 11, ObjID: 7, ObjSize: 9, MTime: base})).Should(BeNil())

			md, err := sqlite.GetInodeMetadata(ctx, 11)
			Expect(err).Should(BeNil())
			Expect(md.CeilingID).Should(Equal(hugeID))
			Expect(md.CeilingSize).Should(Equal(hugeSize))
			Expect(md.MaxSize).Should(Equal(hugeSize))
		})
		It("unknown inode should not be found", func() {
			_, err := sqlite.GetInodeMetadata(context.TODO(), 404)
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})
})

var _ = Describe("TestCommitCacheToSqlite", func() {
	var sqlite = buildNewSqliteMetaStore("test_cache_commit.db")

	Context("commit and reload a cached tree", func() {
		It("should round trip the dentries", func() {
			cache := mdcache.New()
			cache.AddInode(1, types.InheritParent())
			cache.SetRoot(1)
			root := cache.OpenFragment(types.FragKey{Ino: 1})
			cache.AddInode(2, types.InheritParent())
			_, err := cache.Link(root.Key(), "etc", 2)
			Expect(err).Should(BeNil())
			sub := cache.OpenFragment(types.FragKey{Ino: 2})
			cache.AddInode(3, types.InheritParent())
			_, err = cache.Link(sub.Key(), "hosts", 3)
			Expect(err).Should(BeNil())

			Expect(cache.Commit(context.TODO(), sqlite, 1)).Should(BeNil())

			reloaded := mdcache.New()
			reloaded.AddInode(1, types.InheritParent())
			reloaded.SetRoot(1)
			for _, key := range []types.FragKey{{Ino: 1}, {Ino: 2}} {
				rec, err := sqlite.LoadFragment(context.TODO(), key)
				Expect(err).Should(BeNil())
				reloaded.LoadFragment(rec)
			}
			f, ok := reloaded.Fragment(types.FragKey{Ino: 2})
			Expect(ok).Should(BeTrue())
			Expect(f.Names()).Should(Equal([]string{"hosts"}))
			Expect(f.IsComplete()).Should(BeTrue())
		})
	})
})

var _ = Describe("TestDentriesCodec", func() {
	It("small enumerations should stay raw", func() {
		enc, raw, data, err := db.EncodeDentries([]types.DentryRecord{{Name: "a", Ino: 2}})
		Expect(err).Should(BeNil())
		Expect(enc).Should(Equal(db.EncodingRaw))
		Expect(raw).Should(Equal(len(data)))
	})
	It("unknown encoding should fail", func() {
		_, err := db.DecodeDentries("zip", 0, nil)
		Expect(err).ShouldNot(BeNil())
	})
})

func buildNewSqliteMetaStore(dbName string) *sqliteMetaStore {
	result, err := newSqliteMetaStore(config.Meta{
		Type: SqliteMeta,
		Path: path.Join(workdir, dbName),
	})
	Expect(err).Should(BeNil())
	return result
}
