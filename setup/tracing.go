// Copyright 2020 The Coddy.org Foundation C.I.C.
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

package setup

import (
	"io"

	"github.com/sirupsen/logrus"
	jaegerconfig "github.com/uber/jaeger-client-go/config"
	jaegermetrics "github.com/uber/jaeger-lib/metrics"

	"github.com/seckrv/synapse/setup/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupTracing installs the global opentracing tracer. The returned closer
// flushes any buffered spans on shutdown.
func SetupTracing(cfg *config.Synapse) (io.Closer, error) {
	if !cfg.Tracing.Enabled {
		return nopCloser{}, nil
	}
	return cfg.Tracing.Jaeger.InitGlobalTracer(
		"Synapse",
		jaegerconfig.Logger(logrusLogger{logrus.StandardLogger()}),
		jaegerconfig.Metrics(jaegermetrics.NullFactory),
	)
}

// logrusLogger feeds the jaeger client's logging into logrus.
type logrusLogger struct {
	l *logrus.Logger
}

func (l logrusLogger) Error(msg string) {
	l.l.Error(msg)
}

func (l logrusLogger) Infof(msg string, args ...interface{}) {
	l.l.Infof(msg, args...)
}
