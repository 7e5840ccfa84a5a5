package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go/internal/score"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <score> <out.mid>",
	Short: "Write a score as a standard MIDI file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadScore(args[0])
		if err != nil {
			return err
		}
		if err := score.WriteSMF(s, args[1]); err != nil {
			return err
		}
		logrus.Infof("wrote %s (%d notes)", args[1], s.NumNotes())
		return nil
	},
}
