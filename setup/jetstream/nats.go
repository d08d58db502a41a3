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

package jetstream

import (
	"strings"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	natsclient "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/setup/process"
)

// NATSInstance holds the embedded NATS server, when no external addresses
// are configured.
type NATSInstance struct {
	*natsserver.Server
	nc *natsclient.Conn
	js natsclient.JetStreamContext
	sync.Mutex
}

// Prepare connects to NATS (starting an embedded server if the config names
// no external one) and creates the streams the server relies on.
func (s *NATSInstance) Prepare(process *process.ProcessContext, cfg *config.JetStream) (natsclient.JetStreamContext, *natsclient.Conn) {
	s.Lock()
	defer s.Unlock()
	if len(cfg.Addresses) == 0 && s.Server == nil {
		var err error
		opts := &natsserver.Options{
			ServerName:      "synapse",
			DontListen:      true,
			JetStream:       true,
			StoreDir:        cfg.StoragePath,
			NoSystemAccount: true,
			MaxPayload:      16 * 1024 * 1024,
			NoSigs:          true,
		}
		s.Server, err = natsserver.NewServer(opts)
		if err != nil {
			logrus.WithError(err).Fatalln("Failed to create NATS server")
		}
		s.ConfigureLogger()
		go func() {
			process.ComponentStarted()
			s.Start()
		}()
		go func() {
			<-process.WaitForShutdown()
			s.Shutdown()
			s.WaitForShutdown()
			process.ComponentFinished()
		}()
	}
	if len(cfg.Addresses) == 0 {
		if !s.ReadyForConnections(time.Second * 60) {
			logrus.Fatalln("NATS did not start in time")
		}
		// in-process connection
		if s.nc == nil {
			var err error
			s.nc, err = natsclient.Connect("", natsclient.InProcessServer(s))
			if err != nil {
				logrus.Fatalln("Failed to create NATS client")
			}
		}
		if s.js == nil {
			s.js = setupNATS(cfg, s.nc)
		}
		return s.js, s.nc
	}
	nc, err := natsclient.Connect(strings.Join(cfg.Addresses, ","))
	if err != nil {
		logrus.WithError(err).Panic("Unable to connect to NATS")
	}
	js := setupNATS(cfg, nc)
	return js, nc
}

func setupNATS(cfg *config.JetStream, nc *natsclient.Conn) natsclient.JetStreamContext {
	js, err := nc.JetStream()
	if err != nil {
		logrus.WithError(err).Panic("Unable to get JetStream context")
	}

	for _, stream := range streams { // streams are defined in streams.go
		name := cfg.Prefixed(stream.Name)
		info, err := js.StreamInfo(name)
		if err != nil && err != natsclient.ErrStreamNotFound {
			logrus.WithError(err).Fatal("Unable to get stream info")
		}
		if info == nil {
			// Namespace the streams without modifying the original streams
			// array, otherwise we end up with namespaces on namespaces.
			namespaced := *stream
			namespaced.Name = name
			namespaced.Subjects = []string{name}
			if cfg.InMemory {
				namespaced.Storage = natsclient.MemoryStorage
			}
			if _, err = js.AddStream(&namespaced); err != nil {
				logrus.WithError(err).WithField("stream", name).Fatal("Unable to add stream")
			}
		}
	}

	return js
}
