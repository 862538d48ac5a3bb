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

import "sort"

// AddDentryWaiter parks c until someone takes the waiters queued on name.
func (f *DirectoryFragment) AddDentryWaiter(name string, c Completion) {
	if len(f.waitingOnDentry) == 0 {
		f.Inode().get(PinDirWaitDentry)
	}
	f.waitingOnDentry[name] = append(f.waitingOnDentry[name], c)
}

// AddWaiter parks c on the whole fragment. Unfreeze is what usually wakes it.
func (f *DirectoryFragment) AddWaiter(c Completion) {
	if len(f.waitingOnAll) == 0 {
		f.Inode().get(PinDirWait)
	}
	f.waitingOnAll = append(f.waitingOnAll, c)
}

// TakeDentryWaiting moves the completions queued on name to the end of ls.
// Taking a name nobody waits on is a no-op.
func (f *DirectoryFragment) TakeDentryWaiting(name string, ls []Completion) []Completion {
	waiters, ok := f.waitingOnDentry[name]
	if !ok {
		return ls
	}
	ls = append(ls, waiters...)
	delete(f.waitingOnDentry, name)

	if len(f.waitingOnDentry) == 0 {
		f.Inode().put(PinDirWaitDentry)
	}
	return ls
}

// TakeWaiting moves every per-name and fragment wide completion to the end
// of ls, per-name waiters first in name order.
func (f *DirectoryFragment) TakeWaiting(ls []Completion) []Completion {
	in := f.Inode()
	if len(f.waitingOnDentry) > 0 {
		names := make([]string, 0, len(f.waitingOnDentry))
		for name := range f.waitingOnDentry {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ls = append(ls, f.waitingOnDentry[name]...)
		}
		f.waitingOnDentry = make(map[string][]Completion)
		in.put(PinDirWaitDentry)
	}

	if len(f.waitingOnAll) > 0 {
		ls = append(ls, f.waitingOnAll...)
		f.waitingOnAll = nil
		in.put(PinDirWait)
	}
	return ls
}

func (f *DirectoryFragment) HasWaiters() bool {
	return len(f.waitingOnDentry) > 0 || len(f.waitingOnAll) > 0 || len(f.waitingToFreeze) > 0
}

func (f *DirectoryFragment) WaiterCount() int {
	n := len(f.waitingOnAll) + len(f.waitingToFreeze)
	for _, q := range f.waitingOnDentry {
		n += len(q)
	}
	return n
}

func (f *DirectoryFragment) IsWaitingOn(name string) bool {
	_, ok := f.waitingOnDentry[name]
	return ok
}
