// Command radius-cacher ingests RADIUS Accounting-Request packets over UDP
// and projects subscriber identities into an external key/value cache.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/radius-cacher/cmd/radius-cacher/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}
