// Package util holds small helpers shared by the commands.
package util

import (
	"fmt"
	"io"
)

func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// PrintBuildInfo writes the version, date and commit stamped at link time.
func PrintBuildInfo(w io.Writer, buildVersion, buildDate, buildCommit string) {
	fmt.Fprintf(w, "Build version: %s\n", na(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", na(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", na(buildCommit))
}
