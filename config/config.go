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

const (
	MemoryMeta   = "memory"
	SqliteMeta   = "sqlite"
	PostgresMeta = "postgres"
)

type Config struct {
	NodeID        int32   `json:"node_id"`
	Cluster       []int32 `json:"cluster"`
	RootAuthority int32   `json:"root_authority"`

	Meta  Meta   `json:"meta"`
	Cache *Cache `json:"cache,omitempty"`
	Api   Api    `json:"api"`

	SentryDSN string `json:"sentry_dsn,omitempty"`
	Debug     bool   `json:"debug,omitempty"`
}

type Meta struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	DSN  string `json:"dsn,omitempty"`
}

type Cache struct {
	FragmentCacheSize         int `json:"fragment_cache_size"`
	PopularityHalfLifeSeconds int `json:"popularity_half_life_seconds"`
}

type Api struct {
	Enable  bool   `json:"enable"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Pprof   bool   `json:"pprof"`
	Metrics bool   `json:"metrics"`
}
