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
	"github.com/pkg/errors"

	"github.com/basenana/nanamds/config"
	"github.com/basenana/nanamds/utils/logger"
)

// NewMetaStorage opens the fragment store named by meta.Type. The memory
// store is a private sqlite database that vanishes with the process.
func NewMetaStorage(meta config.Meta) (Meta, error) {
	var (
		store Meta
		err   error
	)
	switch meta.Type {
	case MemoryMeta:
		meta.Path = ":memory:"
		store, err = newSqliteMetaStore(meta)
	case SqliteMeta:
		store, err = newSqliteMetaStore(meta)
	case PostgresMeta:
		store, err = newPostgresMetaStore(meta)
	default:
		return nil, errors.Errorf("unknown meta store type: %s", meta.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s meta store", meta.Type)
	}
	logger.NewLogger("metastore").Infow("meta store opened", "type", meta.Type, "path", meta.Path)
	return store, nil
}
