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

import "github.com/basenana/nanamds/pkg/types"

// Completion is a one-shot callback. Whoever takes it off a queue owns it and
// must fire it exactly once.
type Completion interface {
	Complete(r types.Result)
}

type CompletionFunc func(r types.Result)

func (f CompletionFunc) Complete(r types.Result) {
	f(r)
}

type finishItem struct {
	c Completion
	r types.Result
}

// finisher defers completions fired by internal transitions until the
// bookkeeping that triggered them is done. A completion that calls back into
// the cache only appends here; the outermost drain fires it.
type finisher struct {
	queue    []finishItem
	draining bool
}

func (f *finisher) add(cs []Completion, r types.Result) {
	for _, c := range cs {
		if c == nil {
			continue
		}
		f.queue = append(f.queue, finishItem{c: c, r: r})
	}
}

func (f *finisher) drain() {
	if f.draining {
		return
	}
	f.draining = true
	defer func() { f.draining = false }()

	for len(f.queue) > 0 {
		item := f.queue[0]
		f.queue[0] = finishItem{}
		f.queue = f.queue[1:]
		completionFiredCounter.WithLabelValues(resultLabel(item.r)).Inc()
		item.c.Complete(item.r)
	}
	f.queue = nil
}

func (f *finisher) pending() int {
	return len(f.queue)
}
