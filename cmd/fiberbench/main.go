// Command fiberbench runs a yielding fiber workload on a scheduler and
// reports its metrics.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
