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

package keystore

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// insecureSIDs maps SDDL SID abbreviations and full SID strings to
// human-readable names for groups that must not have access to key
// files.
var insecureSIDs = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkFilePermissions rejects wallet key files whose DACL grants access to
// any of the groups in insecureSIDs. The descriptor is read as SDDL so that
// no unsafe SID handles are needed (see https://go.dev/issue/73199).
func checkFilePermissions(path string) error {
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to get security info for %q: %w",
			path,
			err,
		)
	}
	// sd is never freed, which would need unsafe.Pointer. This runs once
	// per process start.
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf(
			"failed to read security descriptor for %q",
			path,
		)
	}

	return checkSDDL(path, sddl)
}

// checkOpenFilePermissions checks the file by name. NTFS won't replace a
// file that is held open.
func checkOpenFilePermissions(f *os.File) error {
	return checkFilePermissions(f.Name())
}

// checkSDDL parses an SDDL string and returns an error if the DACL
// contains any allow ACEs granting access to well-known insecure
// groups.
func checkSDDL(path, sddl string) error {
	// Extract the DACL portion ("D:" up to the next section).
	daclIdx := strings.Index(sddl, "D:")
	if daclIdx < 0 {
		// No DACL means unrestricted access.
		return fmt.Errorf(
			"wallet key file %q has no DACL: %w",
			path,
			ErrInsecureFileMode,
		)
	}
	daclStr := sddl[daclIdx+2:]
	// Trim at the SACL section if present.
	if idx := strings.Index(daclStr, "S:"); idx >= 0 {
		daclStr = daclStr[:idx]
	}

	for {
		start := strings.IndexByte(daclStr, '(')
		if start < 0 {
			break
		}
		end := strings.IndexByte(daclStr[start:], ')')
		if end < 0 {
			break
		}
		ace := daclStr[start+1 : start+end]
		daclStr = daclStr[start+end+1:]

		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 {
			continue
		}

		if fields[0] != "A" {
			continue
		}

		trustee := fields[5]
		if name, ok := insecureSIDs[trustee]; ok {
			return fmt.Errorf(
				"wallet key file %q is readable by %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}

	return nil
}
