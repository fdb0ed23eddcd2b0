//go:build !windows

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
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl sets SO_REUSEADDR and SO_REUSEPORT on the listener socket
func socketControl(network, address string, c syscall.RawConn) error {
	var innerErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(
			int(fd),
			unix.SOL_SOCKET,
			unix.SO_REUSEADDR,
			1,
		); err != nil {
			innerErr = err
			return
		}
		innerErr = unix.SetsockoptInt(
			int(fd),
			unix.SOL_SOCKET,
			unix.SO_REUSEPORT,
			1,
		)
	})
	if innerErr != nil {
		return innerErr
	}
	return err
}

// createPipeListener should never be called on non-Windows systems
func createPipeListener(_ string) (net.Listener, error) {
	return nil, errors.New("pipe listener not supported on non-Windows systems")
}
