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

package apis

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/basenana/nanamds/cmd/apps/apis/common"
	"github.com/basenana/nanamds/config"
	"github.com/basenana/nanamds/pkg/mdcache"
	"github.com/basenana/nanamds/pkg/mds"
	"github.com/basenana/nanamds/pkg/metastore"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils/logger"
)

const (
	defaultHttpTimeout    = time.Minute * 30
	defaultRequestTimeout = time.Second * 30
)

type Server struct {
	engine    *gin.Engine
	shard     *mds.Shard
	meta      metastore.Meta
	events    *mds.EventRecorder
	apiConfig config.Api
	logger    *zap.SugaredLogger
}

func (s *Server) Run(stopCh chan struct{}) {
	addr := fmt.Sprintf("%s:%d", s.apiConfig.Host, s.apiConfig.Port)
	s.logger.Infof("http server on %s", addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      MetricMiddleware("mds", s.engine),
		ReadTimeout:  defaultHttpTimeout,
		WriteTimeout: defaultHttpTimeout,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				s.logger.Panicw("api server down", "err", err.Error())
			}
			s.logger.Infof("api server stopped")
		}
	}()

	<-stopCh
	shutdownCtx, canF := context.WithTimeout(context.TODO(), time.Second)
	defer canF()
	_ = httpServer.Shutdown(shutdownCtx)
}

func (s *Server) Ping(gCtx *gin.Context) {
	gCtx.JSON(200, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) Stats(gCtx *gin.Context) {
	var st mdcache.Stats
	err := s.do(gCtx, func(cache *mdcache.Cache) error {
		st = cache.Stats()
		return nil
	})
	if err != nil {
		s.apiError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, st)
}

func (s *Server) SystemInfo(gCtx *gin.Context) {
	info, err := s.meta.SystemInfo(gCtx.Request.Context())
	if err != nil {
		s.apiError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, info)
}

// DumpFragments renders the cached tree below an inode as plain text.
func (s *Server) DumpFragments(gCtx *gin.Context) {
	ino, ok := s.inodeParam(gCtx)
	if !ok {
		return
	}
	buf := &bytes.Buffer{}
	err := s.do(gCtx, func(cache *mdcache.Cache) error {
		return cache.Dump(buf, ino)
	})
	if err != nil {
		s.apiError(gCtx, err)
		return
	}
	gCtx.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

func (s *Server) CommitFragments(gCtx *gin.Context) {
	ino, ok := s.inodeParam(gCtx)
	if !ok {
		return
	}
	err := s.do(gCtx, func(cache *mdcache.Cache) error {
		return cache.Commit(gCtx.Request.Context(), s.meta, ino)
	})
	if err != nil {
		s.apiError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, map[string]string{"status": "committed"})
}

func (s *Server) RecentEvents(gCtx *gin.Context) {
	if s.events == nil {
		gCtx.JSON(http.StatusOK, []*types.FragmentEvent{})
		return
	}
	gCtx.JSON(http.StatusOK, s.events.Recent())
}

type authorityResponse struct {
	Ino       types.InodeID `json:"ino"`
	Authority types.NodeID  `json:"authority"`
	DirAuth   string        `json:"dir_auth"`
}

func (s *Server) Authority(gCtx *gin.Context) {
	ino, ok := s.inodeParam(gCtx)
	if !ok {
		return
	}
	resp := authorityResponse{Ino: ino}
	err := s.do(gCtx, func(cache *mdcache.Cache) error {
		in, ok := cache.Inode(ino)
		if !ok {
			return types.ErrNotFound
		}
		resp.Authority = cache.InodeAuthority(ino)
		resp.DirAuth = in.DirAuth().String()
		return nil
	})
	if err != nil {
		s.apiError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, resp)
}

func (s *Server) do(gCtx *gin.Context, fn func(cache *mdcache.Cache) error) error {
	ctx, canF := context.WithTimeout(gCtx.Request.Context(), defaultRequestTimeout)
	defer canF()
	return s.shard.Do(ctx, fn)
}

func (s *Server) inodeParam(gCtx *gin.Context) (types.InodeID, bool) {
	ino, err := strconv.ParseInt(gCtx.Param("ino"), 10, 64)
	if err != nil || ino <= 0 {
		gCtx.JSON(http.StatusBadRequest, common.Error{Code: common.ApiArgsError, Message: "invalid inode"})
		return 0, false
	}
	return types.InodeID(ino), true
}

func (s *Server) apiError(gCtx *gin.Context, err error) {
	status, code := common.Error2ApiErrorCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", gCtx.Request.URL.Path, "err", err)
	}
	gCtx.JSON(status, common.Error{Code: code, Message: err.Error()})
}

func NewApiServer(shard *mds.Shard, meta metastore.Meta, recorder *mds.EventRecorder, cfg config.Config) (*Server, error) {
	apiConfig := cfg.Api
	if apiConfig.Enable && apiConfig.Port == 0 {
		return nil, fmt.Errorf("http port not set")
	}
	if apiConfig.Enable && apiConfig.Host == "" {
		apiConfig.Host = "127.0.0.1"
	}

	s := &Server{
		engine:    gin.New(),
		shard:     shard,
		meta:      meta,
		events:    recorder,
		apiConfig: apiConfig,
		logger:    logger.NewLogger("api"),
	}

	s.engine.GET("/_ping", s.Ping)
	s.engine.GET("/stats", s.Stats)
	s.engine.GET("/system", s.SystemInfo)
	s.engine.GET("/fragments/:ino", s.DumpFragments)
	s.engine.POST("/fragments/:ino/commit", s.CommitFragments)
	s.engine.GET("/authority/:ino", s.Authority)
	s.engine.GET("/events", s.RecentEvents)

	if apiConfig.Metrics {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if apiConfig.Pprof {
		pprof.Register(s.engine)
	}

	return s, nil
}
