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
	"sync"

	"github.com/hyponet/eventbus"
	"go.uber.org/zap"

	"github.com/basenana/nanamds/pkg/events"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils/logger"
)

const defaultEventHistory = 128

// EventRecorder keeps the most recent fragment lifecycle events published by
// the cache. Events arrive on eventbus goroutines.
type EventRecorder struct {
	history []*types.FragmentEvent
	next    int
	full    bool
	listen  string
	mux     sync.Mutex
	logger  *zap.SugaredLogger
}

func NewEventRecorder(size int) *EventRecorder {
	r := newEventRecorder(size)
	r.listen = eventbus.Subscribe(events.TopicAllFragmentActions, r.handleEvent)
	return r
}

func newEventRecorder(size int) *EventRecorder {
	if size <= 0 {
		size = defaultEventHistory
	}
	return &EventRecorder{
		history: make([]*types.FragmentEvent, size),
		logger:  logger.NewLogger("fragmentEvents"),
	}
}

func (r *EventRecorder) handleEvent(evt *types.FragmentEvent) {
	if evt == nil {
		return
	}
	fragmentEventCounter.WithLabelValues(evt.Type).Inc()
	r.logger.Debugw("fragment event", "type", evt.Type, "frag", evt.Data.Key.String(),
		"state", evt.Data.State, "result", evt.Data.Result.String())

	r.mux.Lock()
	r.history[r.next] = evt
	r.next = (r.next + 1) % len(r.history)
	if r.next == 0 {
		r.full = true
	}
	r.mux.Unlock()
}

// Recent returns the recorded events, oldest first.
func (r *EventRecorder) Recent() []*types.FragmentEvent {
	r.mux.Lock()
	defer r.mux.Unlock()

	result := make([]*types.FragmentEvent, 0, len(r.history))
	if r.full {
		result = append(result, r.history[r.next:]...)
	}
	result = append(result, r.history[:r.next]...)
	return result
}

func (r *EventRecorder) Close() {
	if r.listen != "" {
		eventbus.Unsubscribe(r.listen)
	}
}
