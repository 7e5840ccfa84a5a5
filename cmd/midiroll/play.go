package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/midimsg"
)

var (
	playPort       string
	playTrajectory bool
	playVolume     float64
	listPorts      bool
)

func init() {
	f := playCmd.Flags()
	f.StringVar(&playPort, "port", "", "send to this MIDI output port instead of the speakers")
	f.BoolVar(&playTrajectory, "trajectory", false, "play the key trajectory instead of the score's notes")
	f.Float64Var(&playVolume, "volume", 1.0, "master volume scalar")
	f.BoolVar(&listPorts, "list-ports", false, "list MIDI output ports and exit")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <score>",
	Short: "Play a score through the speakers or a MIDI port",
	Args: func(cmd *cobra.Command, args []string) error {
		if listPorts {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPorts {
			for _, name := range listMIDIOuts() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}
		events, err := playEvents(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if playPort != "" {
			out, err := openMIDIOut(playPort)
			if err != nil {
				return err
			}
			defer out.Close()
			logrus.Infof("playing %d events on %s", len(events), playPort)
			if err := out.Play(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		pl, err := midiroll.NewPlayer(cfg.SampleRate, synthMode(), synthOptions()...)
		if err != nil {
			return err
		}
		pl.SetMasterVolume(playVolume)
		if err := pl.Play(events); err != nil {
			return err
		}
		logrus.Infof("playing %d events", len(events))
		done := make(chan struct{})
		go func() {
			pl.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return pl.Stop()
	},
}

func playEvents(nameOrPath string) ([]midimsg.Message, error) {
	s, err := loadScore(nameOrPath)
	if err != nil {
		return nil, err
	}
	if !playTrajectory {
		return midiroll.EventsFromScore(s)
	}
	tr, err := midiroll.BuildTrajectory(s, cfg.DT, cfg.InitialBufferTime)
	if err != nil {
		return nil, err
	}
	return midiroll.EventsFromTrajectory(tr)
}
