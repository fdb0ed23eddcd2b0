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

package series

import (
	"errors"
	"fmt"
)

// ValidationError reports a caller input that was rejected before any
// external call was made
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RejectedError is returned when a series transaction failed. Nothing was
// written to the mirror.
type RejectedError struct {
	Err       error
	Operation string
	SeriesID  uint64
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s for series %d rejected: %s", e.Operation, e.SeriesID, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// ErrNotConfigured is returned by operations whose dependency was not
// supplied
var ErrNotConfigured = errors.New("series service is missing a dependency")
