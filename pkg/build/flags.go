// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time: application name,
// build timestamp, Git commit and semantic version, for example:
//
//	go build -ldflags "-X refmaster/pkg/build.buildName=refmaster -X refmaster/pkg/build.buildVersion=0.3.0"
package build

import (
	"errors"
	"fmt"
)

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "unknown",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize copies the ldflags variables into the build information. It
// returns one error listing every missing flag; flags that were set are
// still applied, the rest keep "unknown".
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
