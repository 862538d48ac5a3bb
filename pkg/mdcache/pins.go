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

import "fmt"

// PinReason tags a reference held on an inode that keeps it from being
// evicted.
type PinReason int

const (
	PinChild PinReason = iota
	PinDirWaitDentry
	PinDirWait
	PinDirHardPin
	PinFreeze
	pinReasonCount
)

var pinReasonNames = [pinReasonCount]string{
	PinChild:         "child",
	PinDirWaitDentry: "dirwaitdn",
	PinDirWait:       "dirwait",
	PinDirHardPin:    "dirhardpin",
	PinFreeze:        "freeze",
}

func (r PinReason) String() string {
	if r < 0 || r >= pinReasonCount {
		return fmt.Sprintf("pin(%d)", int(r))
	}
	return pinReasonNames[r]
}

type pinSet [pinReasonCount]int

func (p *pinSet) get(r PinReason) {
	p[r]++
}

func (p *pinSet) put(r PinReason) bool {
	if p[r] == 0 {
		return false
	}
	p[r]--
	return true
}

func (p *pinSet) total() int {
	n := 0
	for _, c := range p {
		n += c
	}
	return n
}

func (p *pinSet) String() string {
	s := "{"
	first := true
	for r, c := range p {
		if c == 0 {
			continue
		}
		if !first {
			s += " "
		}
		first = false
		s += fmt.Sprintf("%s=%d", PinReason(r), c)
	}
	return s + "}"
}
