// Package version holds build metadata set through -ldflags -X.
package version

import "fmt"

var (
	GitCommit = "unknown"
	GitTag    = "dev"
)

func String() string {
	return fmt.Sprintf("nbuild %s+%s", GitTag, GitCommit)
}
