//go:build windows

// Copyright 2026 Blink Labs Software
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

package api

import (
	"net"
	"strings"
	"syscall"

	"github.com/Microsoft/go-winio"
)

// socketControl is a no-op on Windows
func socketControl(network, address string, c syscall.RawConn) error {
	return nil
}

// createPipeListener creates a named pipe listener
func createPipeListener(address string) (net.Listener, error) {
	if !strings.HasPrefix(address, `\\.\pipe\`) {
		address = `\\.\pipe\` + address
	}
	return winio.ListenPipe(address, nil)
}
