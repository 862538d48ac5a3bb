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

package common

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/basenana/nanamds/pkg/types"
)

type ApiErrorCode string

const (
	ApiArgsError      ApiErrorCode = "ArgsError"
	ApiNotFoundError  ApiErrorCode = "NotFound"
	ApiEntryExisted   ApiErrorCode = "EntryExisted"
	ApiNoFragment     ApiErrorCode = "NoFragment"
	ApiNotEvictable   ApiErrorCode = "NotEvictable"
	ApiConflict       ApiErrorCode = "Conflict"
	ApiUnavailable    ApiErrorCode = "Unavailable"
	ApiInternalError  ApiErrorCode = "InternalError"
	ApiRequestTimeout ApiErrorCode = "Timeout"
)

type Error struct {
	Code    ApiErrorCode `json:"code"`
	Message string       `json:"message"`
}

func Error2ApiErrorCode(err error) (int, ApiErrorCode) {
	if err == nil {
		return http.StatusOK, "NoError"
	}
	switch errors.Cause(err) {
	case types.ErrNotFound:
		return http.StatusNotFound, ApiNotFoundError
	case types.ErrIsExist:
		return http.StatusBadRequest, ApiEntryExisted
	case types.ErrNoFragment:
		return http.StatusNotFound, ApiNoFragment
	case types.ErrNotEvictable:
		return http.StatusConflict, ApiNotEvictable
	case types.ErrConflict:
		return http.StatusConflict, ApiConflict
	case types.ErrShardClosed:
		return http.StatusServiceUnavailable, ApiUnavailable
	case context.DeadlineExceeded:
		return http.StatusGatewayTimeout, ApiRequestTimeout
	}
	return http.StatusInternalServerError, ApiInternalError
}
