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
	"time"

	"github.com/bluele/gcache"

	"github.com/basenana/nanamds/pkg/types"
)

// trimmer tracks recently used fragments in an LRU. Fragments pushed out of
// it become trim candidates; the LRU itself never closes anything.
type trimmer struct {
	lru      gcache.Cache
	pending  []types.FragKey
	removing bool
}

func newTrimmer(size int) *trimmer {
	t := &trimmer{}
	t.lru = gcache.New(size).LRU().
		EvictedFunc(t.evicted).
		Build()
	return t
}

func (t *trimmer) touch(key types.FragKey) {
	_ = t.lru.Set(key, struct{}{})
}

func (t *trimmer) forget(key types.FragKey) {
	t.removing = true
	t.lru.Remove(key)
	t.removing = false
}

func (t *trimmer) evicted(key, _ interface{}) {
	if t.removing {
		return
	}
	t.pending = append(t.pending, key.(types.FragKey))
}

// Trim closes the fragments that fell out of the recently used set and are
// no longer in use. Candidates still in use are retried on the next call.
func (c *Cache) Trim() int {
	if c.trimmer == nil {
		return 0
	}
	start := time.Now()
	defer logOperationLatency("trim", start)

	candidates := c.trimmer.pending
	c.trimmer.pending = nil

	closed := 0
	for _, key := range candidates {
		f, ok := c.frags[key]
		if !ok || c.trimmer.lru.Has(key) {
			continue
		}
		if !f.evictable() {
			c.trimmer.pending = append(c.trimmer.pending, key)
			continue
		}
		c.closeFragment(f)
		closed++
	}
	if closed > 0 {
		c.logger.Debugw("trimmed fragments", "closed", closed, "retry", len(c.trimmer.pending))
	}
	c.finisher.drain()
	return closed
}
