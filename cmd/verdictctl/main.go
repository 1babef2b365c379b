// Command verdictctl evaluates fraud checks, booking quotes and energy plans
// offline, without a running server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
