package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go/internal/score"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range score.Names() {
			s, err := score.Builtin(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-36s %5.1fs %3d notes\n", name, s.Duration(), s.NumNotes())
		}
		return nil
	},
}
