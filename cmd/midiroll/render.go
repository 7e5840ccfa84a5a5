package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
)

var (
	renderOut        string
	renderTrajectory bool
)

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "out.wav", "output WAV path")
	renderCmd.Flags().BoolVar(&renderTrajectory, "trajectory", false,
		"render the key trajectory at full velocity instead of the score's own notes")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <score>",
	Short: "Render a score to a mono 16-bit WAV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadScore(args[0])
		if err != nil {
			return err
		}
		var samples []int16
		if renderTrajectory {
			tr, err := midiroll.BuildTrajectory(s, cfg.DT, cfg.InitialBufferTime)
			if err != nil {
				return err
			}
			samples, err = midiroll.RenderTrajectory(tr, synthMode(), cfg.SampleRate, synthOptions()...)
			if err != nil {
				return err
			}
		} else {
			samples, err = midiroll.RenderScore(s, synthMode(), cfg.SampleRate, synthOptions()...)
			if err != nil {
				return err
			}
		}
		wav := midiroll.EncodeWAVInt16LE(samples, cfg.SampleRate, 1)
		if err := os.WriteFile(renderOut, wav, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", renderOut)
		}
		logrus.Infof("wrote %s (%.2fs)", renderOut, float64(len(samples))/float64(cfg.SampleRate))
		return nil
	},
}
