package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wyvern-fem/wyvern/checkpoint"
)

// checkpointCmd describes a checkpoint file without loading it.
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [file]",
	Short: "describe a checkpoint file",
	Run:   cmdCheckpoint,
}

var fJSON bool

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.PersistentFlags().BoolVar(&fJSON, "json", false, "print the description as json")
}

func cmdCheckpoint(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		fmt.Println("missing checkpoint path -- wyvern checkpoint -h for help")
		os.Exit(-1)
	}
	path := filepath.Clean(args[0])
	f, err := os.Open(path)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}
	defer f.Close()

	info, err := checkpoint.Inspect(f)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}

	if fJSON {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(-1)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("%-12s %s\n", "space", info.Space)
	fmt.Printf("%-12s %d\n", "nodes", info.NodeCount)
	fmt.Printf("%-12s %d\n", "stored", info.Count)
	fmt.Printf("%-12s %d\n", "value size", info.ValueSize)
	fmt.Printf("%-12s %d\n", "bytes", info.Bytes)
	fmt.Printf("%-12s %s\n", "version", info.Version)
}
