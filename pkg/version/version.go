// Package version reports the docrag build.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/Aman-CERP/docrag/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build description.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the one-line form printed by 'docrag version'.
func (i Info) String() string {
	return fmt.Sprintf("docrag %s (commit %s, built %s, %s, %s)",
		i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

// UserAgent identifies docrag to embedding and answer endpoints.
func UserAgent() string {
	return "docrag/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
