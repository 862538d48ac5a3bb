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

package mds

import (
	"context"
	"runtime/trace"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/basenana/nanamds/pkg/mdcache"
	"github.com/basenana/nanamds/pkg/types"
	"github.com/basenana/nanamds/utils/logger"
	"github.com/basenana/nanamds/utils/metrics"
)

type request struct {
	ctx   context.Context
	fn    func(cache *mdcache.Cache) error
	errCh chan error
}

// Shard owns one metadata cache and runs every operation on it from a single
// goroutine. Completions fired by the cache therefore run on that goroutine
// too.
type Shard struct {
	cache     *mdcache.Cache
	reqCh     chan *request
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	logger    *zap.SugaredLogger
}

func NewShard(cache *mdcache.Cache) *Shard {
	s := &Shard{
		cache:  cache,
		reqCh:  make(chan *request),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger.NewLogger("shard"),
	}
	go s.run()
	return s
}

// Do runs fn against the cache and waits for its result. Cold fragments are
// trimmed after every request.
func (s *Shard) Do(ctx context.Context, fn func(cache *mdcache.Cache) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &request{ctx: ctx, fn: fn, errCh: make(chan error, 1)}
	select {
	case s.reqCh <- req:
	case <-s.stopCh:
		return types.ErrShardClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.errCh:
		return err
	case <-s.doneCh:
		// the loop may have answered just before it stopped
		select {
		case err := <-req.errCh:
			return err
		default:
			return types.ErrShardClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Shard) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *Shard) run() {
	defer close(s.doneCh)
	defer metrics.RecoverAndRepanic()
	for {
		select {
		case <-s.stopCh:
			s.logger.Infow("stopped")
			return
		case req := <-s.reqCh:
			req.errCh <- s.handle(req)
		}
	}
}

func (s *Shard) handle(req *request) error {
	defer trace.StartRegion(req.ctx, "mds.shard.do").End()
	start := time.Now()
	defer func() {
		shardRequestLatency.Observe(time.Since(start).Seconds())
	}()

	err := req.fn(s.cache)
	if closed := s.cache.Trim(); closed > 0 {
		s.logger.Debugw("trim after request", "closed", closed)
	}
	return err
}
