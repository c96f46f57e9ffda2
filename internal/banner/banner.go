// Package banner prints the startup banner.
package banner

import (
	"fmt"
	"io"
)

const Version = "1.0.0"

// Print writes the banner, the version and the listen address to w.
func Print(w io.Writer, address string) {
	banner := `
                                              ______
   ____ ___  ____ ___  _____  __  _____      / ____/___
  / __ '__ \/ __ '/ / / / _ \/ / / / _ \    / / __/ __ \
 / / / / / / /_/ / /_/ /  __/ /_/ /  __/   / /_/ / /_/ /
/_/ /_/ /_/\__, /\__,_/\___/\__,_/\___/    \____/\____/
             /_/  v%s - Transaction Queue
    `
	fmt.Fprintf(w, banner, Version)
	fmt.Fprintf(w, "\n listening on %s\n", address)
	fmt.Fprintln(w, "------------------------------------------------")
}
