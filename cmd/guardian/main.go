// guardian is the release-readiness CLI: it generates tests for a pull
// request, runs them, validates acceptance coverage and decides whether the
// change can ship.
//
// Usage:
//
//	guardian generate-tests --repo-owner=<o> --repo-name=<r> --pr-number=<n> [--output=<path>]
//	guardian execute-tests  --repo-path=<dir> [--pattern=<path>] [--output=<path>]
//	guardian validate-tests --test-results=<path> --repo-owner=<o> --repo-name=<r> --pr-number=<n>
//	guardian make-decision  --test-defs=<path> --test-results=<path> --validation=<path>
//	guardian end-to-end     --repo-owner=<o> --repo-name=<r> --pr-number=<n> --repo-path=<dir> [--output-dir=<dir>]
//	guardian serve | mcp | rollback-plan | history | replay | version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		os.Exit(1)
	}
}
