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
	"strconv"
	"strings"
)

// set by -ldflags at build time
var (
	gitTag    string
	gitCommit string
)

const devVersion = "0.1.0-dev"

type Version struct {
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
	Release string `json:"release"`
	Git     string `json:"git"`
}

func (v Version) Version() string {
	releaseInfo := ""
	if v.Release != "" {
		releaseInfo = "-" + v.Release
	}
	return fmt.Sprintf("v%d.%d.%d%s", v.Major, v.Minor, v.Patch, releaseInfo)
}

func VersionInfo() Version {
	return parseVersion(gitTag, gitCommit)
}

// parseVersion reads tags shaped like v1.2.3-rc1. Missing or malformed
// numbers are zero.
func parseVersion(tag, commit string) Version {
	if tag == "" {
		tag = devVersion
	}
	core, release, _ := strings.Cut(strings.TrimPrefix(tag, "v"), "-")

	v := Version{Release: release, Git: commit}
	nums := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range strings.SplitN(core, ".", len(nums)) {
		*nums[i], _ = strconv.Atoi(part)
	}
	return v
}
