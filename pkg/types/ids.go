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

import "fmt"

type InodeID int64

// FragID identifies one shard of a directory's dentry set. Directories that
// were never split have a single fragment, RootFrag.
type FragID uint32

const RootFrag FragID = 0

type NodeID int32

const NodeNone NodeID = -1

type FragKey struct {
	Ino  InodeID `json:"ino"`
	Frag FragID  `json:"frag"`
}

func (k FragKey) String() string {
	return fmt.Sprintf("%d.%x", k.Ino, k.Frag)
}

type DirAuthMode int

const (
	DirAuthParent DirAuthMode = iota
	DirAuthHash
	DirAuthExplicit
)

// DirAuth decides who coordinates writes to the dentries of a directory.
type DirAuth struct {
	Mode DirAuthMode `json:"mode"`
	Node NodeID      `json:"node,omitempty"`
}

func InheritParent() DirAuth {
	return DirAuth{Mode: DirAuthParent, Node: NodeNone}
}

func Hashed() DirAuth {
	return DirAuth{Mode: DirAuthHash, Node: NodeNone}
}

func ExplicitNode(n NodeID) DirAuth {
	return DirAuth{Mode: DirAuthExplicit, Node: n}
}

func (a DirAuth) String() string {
	switch a.Mode {
	case DirAuthParent:
		return "parent"
	case DirAuthHash:
		return "hash"
	default:
		return fmt.Sprintf("node.%d", a.Node)
	}
}
