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

package metastore

import (
	"context"

	"github.com/basenana/nanamds/pkg/types"
)

type Meta interface {
	SystemInfo(ctx context.Context) (*types.SystemInfo, error)

	FragmentStore
	InodeMetadataStore
}

// FragmentStore keeps the committed dentry enumeration of every fragment.
// A commit replaces the stored enumeration and advances its version.
type FragmentStore interface {
	CommitFragment(ctx context.Context, rec *types.FragmentRecord) error
	LoadFragment(ctx context.Context, key types.FragKey) (*types.FragmentRecord, error)
	ListFragments(ctx context.Context, ino types.InodeID) ([]types.FragKey, error)
	DeleteFragment(ctx context.Context, key types.FragKey) error
}

// InodeMetadataStore accumulates what a scan of an inode's data objects
// observed. Values only ever grow, so scanners may report in any order and
// more than once.
type InodeMetadataStore interface {
	AccumulateInodeMetadata(ctx context.Context, args types.AccumulateArgs) error
	GetInodeMetadata(ctx context.Context, ino types.InodeID) (*types.InodeMetadata, error)
}
