// Command osdd-ado turns a project plan into an Azure DevOps
// Feature → Product Backlog Item → Task hierarchy.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
