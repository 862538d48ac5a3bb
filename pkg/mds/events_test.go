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
	"github.com/hyponet/eventbus"

	"github.com/basenana/nanamds/pkg/events"
	"github.com/basenana/nanamds/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TestEventRecorder", func() {
	It("should keep the latest events in order", func() {
		recorder := newEventRecorder(2)
		for i := 1; i <= 3; i++ {
			recorder.handleEvent(events.BuildFragmentEvent(events.ActionTypeFrozen,
				types.EventData{Key: types.FragKey{Ino: types.InodeID(i)}}))
		}
		recent := recorder.Recent()
		Expect(recent).Should(HaveLen(2))
		Expect(recent[0].Data.Key.Ino).Should(Equal(types.InodeID(2)))
		Expect(recent[1].Data.Key.Ino).Should(Equal(types.InodeID(3)))
	})

	It("should receive events published on the bus", func() {
		recorder := NewEventRecorder(0)
		defer recorder.Close()

		evt := events.BuildFragmentEvent(events.ActionTypeUnfreeze, types.EventData{Key: types.FragKey{Ino: 42}})
		eventbus.Publish(events.FragmentActionTopic(events.ActionTypeUnfreeze), evt)
		Eventually(func() []*types.FragmentEvent {
			return recorder.Recent()
		}).Should(ContainElement(evt))
	})
})
