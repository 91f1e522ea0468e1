// Package util provides build metadata helpers for the relay binary.
package util

import (
	"fmt"
	"io"
)

// BuildInfo is stamped into the binary with -ldflags.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// na returns "N/A" if the input string is empty, otherwise it returns the input string.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Print writes the build version, date, and commit information to w.
func (b BuildInfo) Print(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", na(b.Version))
	fmt.Fprintf(w, "Build date: %s\n", na(b.Date))
	fmt.Fprintf(w, "Build commit: %s\n", na(b.Commit))
}

// UserAgent returns "product/version", with "dev" for unstamped builds.
func (b BuildInfo) UserAgent(product string) string {
	v := b.Version
	if v == "" {
		v = "dev"
	}
	return product + "/" + v
}
