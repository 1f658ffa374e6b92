package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "workspace",
		Short:        "Block outline workspace with GTD task pages",
		SilenceUsage: true,
	}
	addServe(root)
	addCapture(root)
	addSweep(root)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
