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

import "time"

type DentryRecord struct {
	Name string  `json:"name"`
	Ino  InodeID `json:"ino"`
}

// FragmentRecord is the dentry enumeration of one fragment, as handed to the
// persistence layer.
type FragmentRecord struct {
	Key       FragKey        `json:"key"`
	Version   int64          `json:"version"`
	Dentries  []DentryRecord `json:"dentries"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AccumulateArgs carries one data object's observation into the inode
// metadata accumulator. Every field is only ever raised, never lowered.
type AccumulateArgs struct {
	Ino     InodeID
	ObjID   uint64
	ObjSize uint64
	MTime   time.Time
}

type InodeMetadata struct {
	Ino         InodeID
	CeilingID   uint64
	CeilingSize uint64
	MTime       time.Time
	MaxSize     uint64
}
