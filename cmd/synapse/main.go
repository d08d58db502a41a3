// Copyright 2017 Vector Creations Ltd
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

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/seckrv/synapse/internal"
	"github.com/seckrv/synapse/internal/httputil"
	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup"
	"github.com/seckrv/synapse/setup/jetstream"
	"github.com/seckrv/synapse/setup/process"
	"github.com/seckrv/synapse/userapi"

	_ "github.com/kardianos/minwinsvc"
)

var httpBindAddr = flag.String("http-bind-address", ":8008", "The HTTP listening port for the server")

func main() {
	cfg := setup.ParseFlags()

	internal.SetupStdLogging()
	internal.SetLogLevel(cfg.Logging.Level)

	logrus.Infof("Synapse version %s", internal.VersionString())

	if cfg.Global.Sentry.Enabled {
		logrus.Info("Setting up Sentry for debugging...")
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Global.Sentry.DSN,
			Environment:      cfg.Global.Sentry.Environment,
			Release:          "synapse@" + internal.VersionString(),
			AttachStacktrace: true,
		})
		if err != nil {
			logrus.WithError(err).Panic("failed to start Sentry")
		}
	}

	processCtx := process.NewProcessContext()

	closer, err := setup.SetupTracing(cfg)
	if err != nil {
		logrus.WithError(err).Panic("failed to start opentracing")
	}
	defer closer.Close() // nolint: errcheck

	cm := sqlutil.NewConnectionManager()
	natsInstance := &jetstream.NATSInstance{}
	routers := httputil.NewRouters()

	userAPI := userapi.NewInternalAPI(processCtx, cfg, cm, natsInstance)

	monolith := setup.Monolith{
		Config:  cfg,
		UserAPI: userAPI,
	}
	monolith.AddAllPublicRoutes(routers)

	externalRouter := mux.NewRouter().SkipClean(true).UseEncodedPath()
	externalRouter.PathPrefix(httputil.PublicClientPathPrefix).Handler(routers.Client)
	externalRouter.PathPrefix(httputil.PublicWellKnownPrefix).Handler(routers.WellKnown)
	if cfg.Global.Metrics.Enabled {
		externalRouter.Handle("/metrics", httputil.WrapHandlerInBasicAuth(promhttp.Handler(), httputil.BasicAuth{
			Username: cfg.Global.Metrics.BasicAuth.Username,
			Password: cfg.Global.Metrics.BasicAuth.Password,
		}))
	}

	srv := &http.Server{
		Addr:         *httpBindAddr,
		Handler:      httputil.WrapHandlerInCORS(externalRouter),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	processCtx.ComponentStarted()
	go func() {
		defer processCtx.ComponentFinished()
		logrus.Infof("Starting HTTP listener on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("failed to serve HTTP")
		}
	}()

	// Wait for the process context to be cancelled or for a signal.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-processCtx.WaitForShutdown():
	case sig := <-sigs:
		logrus.Infof("Received signal %v, shutting down", sig)
		processCtx.ShutdownSynapse()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	processCtx.WaitForComponentsToFinish()

	if cfg.Global.Sentry.Enabled {
		sentry.Flush(2 * time.Second)
	}

	logrus.Info("Synapse shut down cleanly")
}
