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
	"encoding/json"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/basenana/nanamds/pkg/types"
)

const (
	EncodingRaw = "json"
	EncodingLZ4 = "json+lz4"
)

// EncodeDentries serializes a fragment enumeration, compressing it with lz4
// when that actually saves space.
func EncodeDentries(dentries []types.DentryRecord) (string, int, []byte, error) {
	if dentries == nil {
		dentries = []types.DentryRecord{}
	}
	raw, err := json.Marshal(dentries)
	if err != nil {
		return "", 0, nil, errors.Wrap(err, "marshal dentries")
	}

	buf := make([]byte, lz4.CompressBlockBound(len(raw)))
	written, err := lz4.CompressBlock(raw, buf, nil)
	if err != nil {
		return "", 0, nil, errors.Wrap(err, "lz4 compress")
	}
	if written == 0 || written >= len(raw) {
		return EncodingRaw, len(raw), raw, nil
	}
	return EncodingLZ4, len(raw), buf[:written], nil
}

func DecodeDentries(encoding string, rawSize int, data []byte) ([]types.DentryRecord, error) {
	raw := data
	switch encoding {
	case EncodingRaw:
	case EncodingLZ4:
		raw = make([]byte, rawSize)
		read, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 decompress")
		}
		if read != rawSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawSize)
		}
	default:
		return nil, fmt.Errorf("unknown dentries encoding: %s", encoding)
	}

	var dentries []types.DentryRecord
	if err := json.Unmarshal(raw, &dentries); err != nil {
		return nil, errors.Wrap(err, "unmarshal dentries")
	}
	return dentries, nil
}
