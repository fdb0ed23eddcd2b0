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

package upload

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/snap/database/plugin/blob"
)

// ErrMissingCredential is returned when the storage backend has no API
// credential configured
var ErrMissingCredential = blob.ErrMissingCredential

// ValidationError reports an input rejected before anything was uploaded
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error is returned when the storage backend failed to store a file
type Error struct {
	Name string
	// StatusCode is the HTTP status returned by a remote storage API, or 0
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %q: %s", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(name string, err error) *Error {
	ret := &Error{Name: name, Err: err}
	var httpErr *blob.HTTPError
	if errors.As(err, &httpErr) {
		ret.StatusCode = httpErr.StatusCode
	}
	return ret
}
