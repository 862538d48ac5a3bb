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
	"runtime/trace"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basenana/nanamds/config"
	"github.com/basenana/nanamds/pkg/metastore/db"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils/logger"
)

const (
	MemoryMeta   = config.MemoryMeta
	SqliteMeta   = config.SqliteMeta
	PostgresMeta = config.PostgresMeta
)

type sqliteMetaStore struct {
	dbStore *sqlMetaStore
	mux     sync.RWMutex
}

var _ Meta = &sqliteMetaStore{}

func (s *sqliteMetaStore) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.SystemInfo(ctx)
}

func (s *sqliteMetaStore) CommitFragment(ctx context.Context, rec *types.FragmentRecord) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.CommitFragment(ctx, rec)
}

func (s *sqliteMetaStore) LoadFragment(ctx context.Context, key types.FragKey) (*types.FragmentRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.LoadFragment(ctx, key)
}

func (s *sqliteMetaStore) ListFragments(ctx context.Context, ino types.InodeID) ([]types.FragKey, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListFragments(ctx, ino)
}

func (s *sqliteMetaStore) DeleteFragment(ctx context.Context, key types.FragKey) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteFragment(ctx, key)
}

func (s *sqliteMetaStore) AccumulateInodeMetadata(ctx context.Context, args types.AccumulateArgs) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.AccumulateInodeMetadata(ctx, args)
}

func (s *sqliteMetaStore) GetInodeMetadata(ctx context.Context, ino types.InodeID) (*types.InodeMetadata, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetInodeMetadata(ctx, ino)
}

func newSqliteMetaStore(meta config.Meta) (*sqliteMetaStore, error) {
	dbEntity, err := gorm.Open(sqlite.Open(meta.Path), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, err
	}

	dbConn, err := dbEntity.DB()
	if err != nil {
		return nil, err
	}
	// every connection to :memory: opens its own database
	dbConn.SetMaxOpenConns(1)

	if err = dbConn.Ping(); err != nil {
		return nil, err
	}

	dbStore, err := buildSqlMetaStore(dbEntity)
	if err != nil {
		return nil, err
	}

	return &sqliteMetaStore{dbStore: dbStore}, nil
}

type sqlMetaStore struct {
	*gorm.DB
	logger *zap.SugaredLogger
}

var _ Meta = &sqlMetaStore{}

func buildSqlMetaStore(dbEntity *gorm.DB) (*sqlMetaStore, error) {
	s := &sqlMetaStore{DB: dbEntity, logger: logger.NewLogger("dbStore")}

	if err := db.Migrate(s.DB); err != nil {
		return nil, db.SqlError2Error(err)
	}

	_, err := s.SystemInfo(context.TODO())
	if err != nil {
		if err != types.ErrNotFound {
			return nil, err
		}
		sysInfo := &db.SystemInfo{ClusterID: uuid.New().String(), CreatedAt: time.Now().UnixNano()}
		if res := s.WithContext(context.Background()).Create(sysInfo); res.Error != nil {
			return nil, db.SqlError2Error(res.Error)
		}
	}
	return s, nil
}

func (s *sqlMetaStore) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	defer trace.StartRegion(ctx, "metastore.sql.SystemInfo").End()
	info := &db.SystemInfo{}
	res := s.WithContext(ctx).First(info)
	if res.Error != nil {
		return nil, db.SqlError2Error(res.Error)
	}
	result := &types.SystemInfo{ClusterID: info.ClusterID}

	res = s.WithContext(ctx).Model(&db.Fragment{}).Count(&result.FragmentCount)
	if res.Error != nil {
		return nil, db.SqlError2Error(res.Error)
	}
	res = s.WithContext(ctx).Model(&db.InodeMetadata{}).Count(&result.InodeCount)
	if res.Error != nil {
		return nil, db.SqlError2Error(res.Error)
	}
	if result.FragmentCount == 0 {
		return result, nil
	}

	var dentries struct{ Total int64 }
	res = s.WithContext(ctx).Model(&db.Fragment{}).Select("SUM(item_count) as total").Scan(&dentries)
	if res.Error != nil {
		return nil, db.SqlError2Error(res.Error)
	}
	result.DentryCount = dentries.Total
	return result, nil
}

func (s *sqlMetaStore) CommitFragment(ctx context.Context, rec *types.FragmentRecord) error {
	defer trace.StartRegion(ctx, "metastore.sql.CommitFragment").End()
	defer logOperationLatency("commit_fragment", time.Now())

	newMod := &db.Fragment{}
	if err := newMod.From(rec); err != nil {
		return err
	}
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oldMod := &db.Fragment{}
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ino = ? AND frag = ?", newMod.Ino, newMod.Frag).First(oldMod)
		switch {
		case res.Error == gorm.ErrRecordNotFound:
			newMod.Version = 1
			return tx.Create(newMod).Error
		case res.Error != nil:
			return res.Error
		}

		newMod.ID = oldMod.ID
		newMod.Version = oldMod.Version + 1
		res = tx.Model(newMod).Where("version = ?", oldMod.Version).
			Select("version", "item_count", "encoding", "raw_size", "dentries", "updated_at").
			Updates(newMod)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConflict
		}
		return nil
	})
	if err != nil {
		logOperationError("commit_fragment", err)
		s.logger.Errorw("commit fragment failed", "frag", rec.Key.String(), "err", err)
		return db.SqlError2Error(err)
	}
	logFragmentBlob(newMod)
	rec.Version = newMod.Version
	return nil
}

func (s *sqlMetaStore) LoadFragment(ctx context.Context, key types.FragKey) (*types.FragmentRecord, error) {
	defer trace.StartRegion(ctx, "metastore.sql.LoadFragment").End()
	defer logOperationLatency("load_fragment", time.Now())

	mod := &db.Fragment{}
	res := s.WithContext(ctx).Where("ino = ? AND frag = ?", int64(key.Ino), int64(key.Frag)).First(mod)
	if res.Error != nil {
		logOperationError("load_fragment", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return mod.ToRecord()
}

// ListFragments lists the stored fragments of ino, or of every directory
// when ino is zero.
func (s *sqlMetaStore) ListFragments(ctx context.Context, ino types.InodeID) ([]types.FragKey, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListFragments").End()
	defer logOperationLatency("list_fragments", time.Now())

	var mods []db.Fragment
	tx := s.WithContext(ctx).Select("ino", "frag")
	if ino != 0 {
		tx = tx.Where("ino = ?", int64(ino))
	}
	res := tx.Order("ino, frag").Find(&mods)
	if res.Error != nil {
		logOperationError("list_fragments", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}

	result := make([]types.FragKey, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].Key())
	}
	return result, nil
}

func (s *sqlMetaStore) DeleteFragment(ctx context.Context, key types.FragKey) error {
	defer trace.StartRegion(ctx, "metastore.sql.DeleteFragment").End()
	defer logOperationLatency("delete_fragment", time.Now())

	res := s.WithContext(ctx).Where("ino = ? AND frag = ?", int64(key.Ino), int64(key.Frag)).Delete(&db.Fragment{})
	if res.Error != nil {
		logOperationError("delete_fragment", res.Error)
		return db.SqlError2Error(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *sqlMetaStore) AccumulateInodeMetadata(ctx context.Context, args types.AccumulateArgs) error {
	defer trace.StartRegion(ctx, "metastore.sql.AccumulateInodeMetadata").End()
	defer logOperationLatency("accumulate_inode_metadata", time.Now())

	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mod := &db.InodeMetadata{}
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("ino = ?", int64(args.Ino)).First(mod)
		switch {
		case res.Error == gorm.ErrRecordNotFound:
			mod = &db.InodeMetadata{Ino: int64(args.Ino)}
			mod.Accumulate(args)
			return tx.Create(mod).Error
		case res.Error != nil:
			return res.Error
		}

		if !mod.Accumulate(args) {
			return nil
		}
		return tx.Save(mod).Error
	})
	if err != nil {
		logOperationError("accumulate_inode_metadata", err)
		s.logger.Errorw("accumulate inode metadata failed", "ino", args.Ino, "err", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) GetInodeMetadata(ctx context.Context, ino types.InodeID) (*types.InodeMetadata, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetInodeMetadata").End()
	mod := &db.InodeMetadata{}
	res := s.WithContext(ctx).Where("ino = ?", int64(ino)).First(mod)
	if res.Error != nil {
		return nil, db.SqlError2Error(res.Error)
	}
	return mod.ToInodeMetadata(), nil
}

func newPostgresMetaStore(meta config.Meta) (*sqlMetaStore, error) {
	dbEntity, err := gorm.Open(postgres.Open(meta.DSN), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, err
	}

	dbConn, err := dbEntity.DB()
	if err != nil {
		return nil, err
	}

	dbConn.SetMaxIdleConns(5)
	dbConn.SetMaxOpenConns(50)
	dbConn.SetConnMaxLifetime(time.Hour)

	if err = dbConn.Ping(); err != nil {
		return nil, err
	}

	return buildSqlMetaStore(dbEntity)
}
