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

package db

import (
	"time"

	"github.com/basenana/nanamds/pkg/types"
)

type SystemInfo struct {
	ClusterID string `gorm:"column:cluster_id;primaryKey"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (i SystemInfo) TableName() string {
	return "system_info"
}

type Fragment struct {
	ID        int64  `gorm:"column:id;autoIncrement;primaryKey"`
	Ino       int64  `gorm:"column:ino;uniqueIndex:frag_key"`
	Frag      int64  `gorm:"column:frag;uniqueIndex:frag_key"`
	Version   int64  `gorm:"column:version"`
	ItemCount int64  `gorm:"column:item_count"`
	Encoding  string `gorm:"column:encoding"`
	RawSize   int64  `gorm:"column:raw_size"`
	Dentries  []byte `gorm:"column:dentries"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (f *Fragment) TableName() string {
	return "fragment"
}

func (f *Fragment) Key() types.FragKey {
	return types.FragKey{Ino: types.InodeID(f.Ino), Frag: types.FragID(f.Frag)}
}

// From fills everything but the version, which only the store advances.
func (f *Fragment) From(rec *types.FragmentRecord) error {
	enc, raw, data, err := EncodeDentries(rec.Dentries)
	if err != nil {
		return err
	}
	f.Ino = int64(rec.Key.Ino)
	f.Frag = int64(rec.Key.Frag)
	f.ItemCount = int64(len(rec.Dentries))
	f.Encoding = enc
	f.RawSize = int64(raw)
	f.Dentries = data
	f.UpdatedAt = rec.UpdatedAt.UnixNano()
	return nil
}

func (f *Fragment) ToRecord() (*types.FragmentRecord, error) {
	dentries, err := DecodeDentries(f.Encoding, int(f.RawSize), f.Dentries)
	if err != nil {
		return nil, err
	}
	return &types.FragmentRecord{
		Key:       f.Key(),
		Version:   f.Version,
		Dentries:  dentries,
		UpdatedAt: time.Unix(0, f.UpdatedAt),
	}, nil
}

// InodeMetadata holds the values recovered by scanning an inode's data
// objects. Each column only moves upwards.
type InodeMetadata struct {
	Ino         int64 `gorm:"column:ino;primaryKey"`
	CeilingID   int64 `gorm:"column:ceiling_id"`
	CeilingSize int64 `gorm:"column:ceiling_size"`
	MTime       int64 `gorm:"column:mtime"`
	MaxSize     int64 `gorm:"column:max_size"`
}

func (m *InodeMetadata) TableName() string {
	return "inode_metadata"
}

// Accumulate raises the stored values with one object observation and
// reports whether anything changed. The ceiling is ordered by object id alone
// and carries that object's size along with it.
func (m *InodeMetadata) Accumulate(args types.AccumulateArgs) bool {
	changed := false
	// ids and sizes are unsigned, stored bit for bit in int64 columns
	if args.ObjID > uint64(m.CeilingID) || (m.CeilingID == 0 && m.CeilingSize == 0) {
		m.CeilingID = int64(args.ObjID)
		m.CeilingSize = int64(args.ObjSize)
		changed = true
	}
	if mtime := args.MTime.UnixNano(); mtime > m.MTime {
		m.MTime = mtime
		changed = true
	}
	if args.ObjSize > uint64(m.MaxSize) {
		m.MaxSize = int64(args.ObjSize)
		changed = true
	}
	return changed
}

func (m *InodeMetadata) ToInodeMetadata() *types.InodeMetadata {
	return &types.InodeMetadata{
		Ino:         types.InodeID(m.Ino),
		CeilingID:   uint64(m.CeilingID),
		CeilingSize: uint64(m.CeilingSize),
		MTime:       time.Unix(0, m.MTime),
		MaxSize:     uint64(m.MaxSize),
	}
}
