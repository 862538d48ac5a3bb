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
	"fmt"
	"os"
)

const (
	defaultFragmentCacheSize  = 4096
	defaultPopularityHalfLife = 5
)

func DefaultConfig(workdir string) (Config, error) {
	cfg := Config{
		NodeID:        0,
		Cluster:       []int32{0},
		RootAuthority: 0,
		Meta: Meta{
			Type: SqliteMeta,
			Path: fmt.Sprintf("%s/nanamds.db", workdir),
		},
		Cache: defaultCacheConfig(),
		Api: Api{
			Enable:  true,
			Host:    "127.0.0.1",
			Port:    17087,
			Metrics: true,
		},
		Debug: false,
	}

	if err := os.MkdirAll(workdir, 0755); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaultCacheConfig() *Cache {
	return &Cache{
		FragmentCacheSize:         defaultFragmentCacheSize,
		PopularityHalfLifeSeconds: defaultPopularityHalfLife,
	}
}
