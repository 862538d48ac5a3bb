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

package config

import (
	"github.com/pkg/errors"
)

type verifier func(config *Config) error

var verifiers = []verifier{
	setDefaultValue,
	checkClusterConfig,
	checkMetaConfig,
	checkCacheConfig,
	checkApiConfig,
}

func Verify(config *Config) error {
	for _, f := range verifiers {
		if err := f(config); err != nil {
			return err
		}
	}
	return nil
}

func setDefaultValue(config *Config) error {
	if config.Cache == nil {
		config.Cache = defaultCacheConfig()
	}
	if len(config.Cluster) == 0 {
		config.Cluster = []int32{config.NodeID}
	}
	return nil
}

func checkClusterConfig(config *Config) error {
	var hasSelf, hasRoot bool
	seen := make(map[int32]struct{}, len(config.Cluster))
	for _, n := range config.Cluster {
		if n < 0 {
			return errors.Errorf("cluster node %d is negative", n)
		}
		if _, ok := seen[n]; ok {
			return errors.Errorf("cluster node %d is duplicated", n)
		}
		seen[n] = struct{}{}
		if n == config.NodeID {
			hasSelf = true
		}
		if n == config.RootAuthority {
			hasRoot = true
		}
	}
	if !hasSelf {
		return errors.Errorf("node_id %d not in cluster", config.NodeID)
	}
	if !hasRoot {
		return errors.Errorf("root_authority %d not in cluster", config.RootAuthority)
	}
	return nil
}

func checkMetaConfig(config *Config) error {
	m := config.Meta
	switch m.Type {
	case MemoryMeta:
		return nil
	case SqliteMeta:
		if m.Path == "" {
			return errors.New("path for sqlite db file is empty")
		}
		return nil
	case PostgresMeta:
		if m.DSN == "" {
			return errors.New("db dsn is empty")
		}
		return nil
	default:
		return errors.Errorf("unknown meta type %s", m.Type)
	}
}

func checkCacheConfig(config *Config) error {
	c := config.Cache
	if c.FragmentCacheSize < 0 {
		return errors.New("cache.fragment_cache_size must not be negative")
	}
	if c.PopularityHalfLifeSeconds < 0 {
		return errors.New("cache.popularity_half_life_seconds must not be negative")
	}
	return nil
}

func checkApiConfig(config *Config) error {
	aCfg := config.Api
	if !aCfg.Enable {
		return nil
	}
	if aCfg.Host == "" || aCfg.Port == 0 {
		return errors.New("api.host or api.port not config")
	}
	return nil
}
