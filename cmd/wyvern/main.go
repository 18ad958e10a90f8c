// Package main implements the wyvern command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wyvern "github.com/wyvern-fem/wyvern"
)

var rootCmd = &cobra.Command{
	Use:   "wyvern",
	Short: "inspect wyvern finite element artifacts",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the library version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("wyvern", wyvern.Version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}
}
