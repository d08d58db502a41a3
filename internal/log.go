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

package internal

import (
	"io"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/sirupsen/logrus"
)

// SetupStdLogging configures the logging format to standard output. Typically,
// it is called when the server is initializing.
func SetupStdLogging() {
	logrus.SetReportCaller(true)
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat:  "2006-01-02T15:04:05.000000000Z07:00",
		FullTimestamp:    true,
		DisableColors:    false,
		DisableTimestamp: false,
		QuoteEmptyFields: true,
	})
	logrus.SetOutput(io.Discard)
	logrus.AddHook(stdemuxerhook.New(logrus.StandardLogger()))
}

// SetLogLevel applies the named logrus level to the standard logger, falling
// back to info on an unknown name.
func SetLogLevel(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
