// Command breezectl inspects breeze metadata documents and generates one
// from the bundled demo model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "breezectl",
		Short:        "Inspect and generate breeze metadata documents",
		SilenceUsage: true,
	}
	root.AddCommand(newInspectCmd(), newDemoCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
