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

package apps

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/basenana/nanamds/cmd/apps/apis"
	configapp "github.com/basenana/nanamds/cmd/apps/config"
	"github.com/basenana/nanamds/config"
	"github.com/basenana/nanamds/pkg/mdcache"
	"github.com/basenana/nanamds/pkg/mds"
	"github.com/basenana/nanamds/pkg/metastore"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils"
	"github.com/basenana/nanamds/utils/logger"
	"github.com/basenana/nanamds/utils/metrics"
)

const rootIno types.InodeID = 1

func init() {
	RootCmd.AddCommand(daemonCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(configapp.RunCmd)
}

var RootCmd = &cobra.Command{
	Use:   "nanamds",
	Short: "NanaMDS metadata server",
	Long:  `Directory fragment cache and metadata service.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	defaultConfig := path.Join(config.LocalUserPath(), config.DefaultConfigBase)
	daemonCmd.Flags().StringVar(&config.FilePath, "config", defaultConfig, "nanamds config file")
	inspectCmd.Flags().StringVar(&config.FilePath, "config", defaultConfig, "nanamds config file")
}

var daemonCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start metadata service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, meta := bootstrap()

		if err := metrics.InitSentry(cfg.SentryDSN); err != nil {
			panic(err)
		}
		if err := utils.SetIDNode(int64(cfg.NodeID)); err != nil {
			panic(err)
		}

		cache := mdcache.New(cacheOptions(cfg)...)
		if err := loadRoot(cache, meta); err != nil {
			panic(err)
		}

		shard := mds.NewShard(cache)
		recorder := mds.NewEventRecorder(0)
		defer recorder.Close()

		stop := utils.HandleTerminalSignal()
		run(shard, meta, recorder, cfg, stop)
	},
}

func run(shard *mds.Shard, meta metastore.Meta, recorder *mds.EventRecorder, cfg config.Config, stopCh chan struct{}) {
	log := logger.NewLogger("nanamds")
	log.Infow("starting", "version", config.VersionInfo().Version(), "node", cfg.NodeID)

	if cfg.Api.Enable {
		s, err := apis.NewApiServer(shard, meta, recorder, cfg)
		if err != nil {
			log.Panicw("init http server failed", "err", err.Error())
		}
		go s.Run(stopCh)
	}

	log.Info("started")
	<-stopCh

	ctx, canF := context.WithTimeout(context.Background(), time.Minute)
	defer canF()
	err := shard.Do(ctx, func(cache *mdcache.Cache) error {
		return cache.Commit(ctx, meta, rootIno)
	})
	if err != nil {
		log.Errorw("commit on shutdown failed", "err", err)
	}
	shard.Close()
	log.Info("stopped")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [ino]",
	Short: "List committed fragments",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, meta := bootstrap()

		var ino int64
		if len(args) == 1 {
			if _, err := fmt.Sscanf(args[0], "%d", &ino); err != nil {
				fmt.Printf("invalid inode %s: %s\n", args[0], err)
				return
			}
		}

		ctx := context.Background()
		keys, err := meta.ListFragments(ctx, types.InodeID(ino))
		if err != nil {
			fmt.Printf("list fragments failed: %s\n", err)
			return
		}
		for _, key := range keys {
			rec, err := meta.LoadFragment(ctx, key)
			if err != nil {
				fmt.Printf("%s\tload failed: %s\n", key, err)
				continue
			}
			fmt.Printf("%s\tv%d\t%d dentries\t%s\n", key, rec.Version, len(rec.Dentries),
				rec.UpdatedAt.Format(time.RFC3339))
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "View version information",
	Run: func(cmd *cobra.Command, args []string) {
		vInfo := config.VersionInfo()
		fmt.Printf("Version: %s\n", vInfo.Version())
		fmt.Printf("GitCommit: %s\n", vInfo.Git)
	},
}

func bootstrap() (config.Config, metastore.Meta) {
	loader := config.NewConfigLoader()
	cfg, err := loader.GetConfig()
	if err != nil {
		panic(err)
	}

	logger.InitLogger()
	if cfg.Debug {
		logger.SetDebug(cfg.Debug)
	}

	meta, err := metastore.NewMetaStorage(cfg.Meta)
	if err != nil {
		panic(err)
	}
	return cfg, meta
}

func cacheOptions(cfg config.Config) []mdcache.Option {
	nodes := make([]types.NodeID, 0, len(cfg.Cluster))
	for _, n := range cfg.Cluster {
		nodes = append(nodes, types.NodeID(n))
	}
	return []mdcache.Option{
		mdcache.WithResolver(mdcache.NewHashResolver(nodes)),
		mdcache.WithRootAuthority(types.NodeID(cfg.RootAuthority)),
		mdcache.WithPopularityHalfLife(time.Duration(cfg.Cache.PopularityHalfLifeSeconds) * time.Second),
		mdcache.WithTrimSize(cfg.Cache.FragmentCacheSize),
	}
}

// loadRoot caches the root inode and fills its first fragment from the store
// when one was committed before.
func loadRoot(cache *mdcache.Cache, meta metastore.Meta) error {
	cache.AddInode(rootIno, types.InheritParent())
	cache.SetRoot(rootIno)

	ctx := context.Background()
	rec, err := meta.LoadFragment(ctx, types.FragKey{Ino: rootIno, Frag: types.RootFrag})
	switch err {
	case nil:
		cache.LoadFragment(rec)
	case types.ErrNotFound:
		cache.OpenFragment(types.FragKey{Ino: rootIno, Frag: types.RootFrag}).MarkComplete()
	default:
		return err
	}
	return nil
}
