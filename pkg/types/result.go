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

package types

import "syscall"

// Result is the code handed to a completion when it fires. Zero means the
// awaited condition holds; negative values are errno style failures.
type Result int

const (
	ResultOK       Result = 0
	ResultCanceled        = Result(-int(syscall.ECANCELED))
)

func (r Result) OK() bool {
	return r == ResultOK
}

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCanceled:
		return "canceled"
	default:
		return syscall.Errno(-r).Error()
	}
}
