// Copyright 2021 The Coddy.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package process

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// ProcessContext keeps track of the background components of the process so
// that the main routine can wait for them to stop on shutdown.
type ProcessContext struct {
	wg       sync.WaitGroup
	ctx      context.Context
	shutdown context.CancelFunc
	degraded atomic.Bool
}

func NewProcessContext() *ProcessContext {
	ctx, shutdown := context.WithCancel(context.Background())
	return &ProcessContext{
		ctx:      ctx,
		shutdown: shutdown,
	}
}

// Context returns a context that is cancelled when the process shuts down.
func (b *ProcessContext) Context() context.Context {
	return context.WithValue(b.ctx, "scope", "process context") // nolint:staticcheck
}

// ComponentStarted marks a component as running; ShutdownAndWait will block
// until ComponentFinished is called for each started component.
func (b *ProcessContext) ComponentStarted() {
	b.wg.Add(1)
}

func (b *ProcessContext) ComponentFinished() {
	b.wg.Done()
}

// ShutdownSynapse cancels the process context, signalling all components to
// stop.
func (b *ProcessContext) ShutdownSynapse() {
	b.shutdown()
}

// WaitForShutdown returns a channel closed when shutdown begins.
func (b *ProcessContext) WaitForShutdown() <-chan struct{} {
	return b.ctx.Done()
}

// WaitForComponentsToFinish blocks until all started components have
// reported themselves finished.
func (b *ProcessContext) WaitForComponentsToFinish() {
	b.wg.Wait()
}

// Degraded marks the process as degraded: a component hit a problem it can
// run without, but that an operator should know about.
func (b *ProcessContext) Degraded(err error) {
	if b.degraded.CompareAndSwap(false, true) {
		logrus.WithError(err).Warn("Server is running in a degraded state")
		sentry.CaptureException(err)
	}
}

func (b *ProcessContext) IsDegraded() bool {
	return b.degraded.Load()
}
