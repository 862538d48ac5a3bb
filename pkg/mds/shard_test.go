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

package mds

import (
	"context"
	"errors"
	"sync"

	"github.com/basenana/nanamds/pkg/mdcache"
	"github.com/basenana/nanamds/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TestShard", func() {
	var shard *Shard
	BeforeEach(func() {
		cache := mdcache.New(mdcache.WithTrimSize(1))
		cache.AddInode(1, types.InheritParent())
		cache.SetRoot(1)
		shard = NewShard(cache)
	})
	AfterEach(func() {
		shard.Close()
	})

	Context("run requests", func() {
		It("should serialize concurrent requests", func() {
			var (
				counter int
				wg      sync.WaitGroup
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := shard.Do(context.TODO(), func(cache *mdcache.Cache) error {
						counter++
						return nil
					})
					Expect(err).Should(BeNil())
				}()
			}
			wg.Wait()
			Expect(counter).Should(Equal(50))
		})
		It("should return the request error", func() {
			err := shard.Do(context.TODO(), func(cache *mdcache.Cache) error {
				return cache.Unlink(types.FragKey{Ino: 1}, "missing")
			})
			Expect(err).Should(Equal(types.ErrNoFragment))
		})
		It("should fire freeze completions inside the request", func() {
			var result []types.Result
			err := shard.Do(context.TODO(), func(cache *mdcache.Cache) error {
				f := cache.OpenFragment(types.FragKey{Ino: 1})
				f.Freeze(mdcache.CompletionFunc(func(r types.Result) {
					result = append(result, r)
				}))
				f.Unfreeze()
				return nil
			})
			Expect(err).Should(BeNil())
			Expect(result).Should(Equal([]types.Result{types.ResultOK}))
		})
	})

	Context("trim after requests", func() {
		It("should close cold fragments", func() {
			Expect(shard.Do(context.TODO(), func(cache *mdcache.Cache) error {
				cache.AddInode(2, types.InheritParent())
				cache.OpenFragment(types.FragKey{Ino: 1})
				cache.OpenFragment(types.FragKey{Ino: 2})
				return nil
			})).Should(BeNil())

			var fragments int
			Expect(shard.Do(context.TODO(), func(cache *mdcache.Cache) error {
				fragments = cache.Stats().Fragments
				return nil
			})).Should(BeNil())
			Expect(fragments).Should(Equal(1))
		})
	})

	Context("closed or canceled", func() {
		It("should refuse a canceled context", func() {
			ctx, cancel := context.WithCancel(context.TODO())
			cancel()
			err := shard.Do(ctx, func(cache *mdcache.Cache) error { return nil })
			Expect(err).Should(Equal(context.Canceled))
		})
		It("should keep the result of a request finished while closing", func() {
			errRequest := errors.New("request result")
			for i := 0; i < 20; i++ {
				cache := mdcache.New()
				cache.AddInode(1, types.InheritParent())
				s := NewShard(cache)
				err := s.Do(context.TODO(), func(cache *mdcache.Cache) error {
					s.closeOnce.Do(func() { close(s.stopCh) })
					return errRequest
				})
				Expect(err).Should(Equal(errRequest))
				<-s.doneCh
			}
		})
		It("should refuse requests after close", func() {
			shard.Close()
			err := shard.Do(context.TODO(), func(cache *mdcache.Cache) error { return nil })
			Expect(err).Should(Equal(types.ErrShardClosed))
		})
	})
})
