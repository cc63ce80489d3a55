/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version and Commit are set at build time via ldflags:
//
//	-X github.com/friendsincode/hydroplan/internal/version.Version=X.Y.Z
//	-X github.com/friendsincode/hydroplan/internal/version.Commit=abc123
var (
	Version = "0.4.0"
	Commit  = "dev"
)

// Info is the build information reported by the CLI and the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Current returns the running build's information.
func Current() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("hydroplan %s (%s, %s)", i.Version, i.Commit, i.GoVersion)
}
