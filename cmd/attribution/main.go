// Command attribution is the entry point of the attribution CLI.
package main

import (
	"fmt"
	"os"

	"github.com/step6836/marketing-attribution/cmd"
	"github.com/step6836/marketing-attribution/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()
	iocache.CloseCaching()
	if shutdownErr := cmd.Shutdown(); shutdownErr != nil {
		fmt.Fprintln(os.Stderr, "⚠️ ", shutdownErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
