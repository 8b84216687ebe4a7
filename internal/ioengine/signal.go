// Copyright 2023 Kami
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

package ioengine

import (
	"os"
	"os/signal"
	"syscall"
)

// Stoppable is implemented by anything NotifyStop can shut down on a
// process signal — service.Server and service.Client both satisfy it.
type Stoppable interface {
	Stop()
}

// NotifyStop installs a single SIGINT/SIGTERM handler for the process and
// calls Stop on every registered service when it fires. The source installs
// one signal handler per Service instance; this installs exactly one
// handler for the whole process and fans it out, since a single process
// only ever has one set of OS signals to observe.
func NotifyStop(services ...Stoppable) (cancel func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			for _, s := range services {
				s.Stop()
			}
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(ch)
	}
}
