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
	"math"
	"time"
)

// DecayCounter is an access counter whose value halves every halfLife.
type DecayCounter struct {
	value    float64
	last     time.Time
	halfLife time.Duration
}

func NewDecayCounter(halfLife time.Duration) DecayCounter {
	return DecayCounter{halfLife: halfLife}
}

func (d *DecayCounter) Hit(now time.Time) {
	d.decay(now)
	d.value++
}

func (d *DecayCounter) Get(now time.Time) float64 {
	d.decay(now)
	return d.value
}

func (d *DecayCounter) Reset() {
	d.value = 0
	d.last = time.Time{}
}

func (d *DecayCounter) decay(now time.Time) {
	if d.last.IsZero() {
		d.last = now
		return
	}
	elapsed := now.Sub(d.last)
	if elapsed <= 0 {
		return
	}
	if d.halfLife > 0 {
		d.value *= math.Exp2(-float64(elapsed) / float64(d.halfLife))
	}
	d.last = now
}
