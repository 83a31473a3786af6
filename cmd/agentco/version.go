package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kawanishi0117/agent-company-sub000/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentco version %s\n", version.Get())
	},
}
