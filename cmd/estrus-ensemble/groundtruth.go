// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/estrus-ensemble/internal/groundtruth"
)

var groundtruthCmd = &cobra.Command{
	Use:   "groundtruth <filenames...>",
	Short: "Show the stage each filename is labeled with",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGroundtruth,
}

func init() {
	rootCmd.AddCommand(groundtruthCmd)
}

func runGroundtruth(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		st, ok := groundtruth.Extract(name)
		if !ok {
			fmt.Printf("%s\tunlabeled\n", name)
			continue
		}
		fmt.Printf("%s\t%s\n", name, st)
	}
	return nil
}
