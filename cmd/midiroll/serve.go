package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/server"
	"github.com/cbegin/midiroll-go/internal/synth"
)

var (
	serveAddr string
	serveLive bool
	servePort string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveLive, "live", false, "play activations through the speakers as they arrive")
	serveCmd.Flags().StringVar(&servePort, "port", "", "also send activations to this MIDI output port")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve key activations over HTTP",
	Long: `Serve key activations over HTTP. Try:

  curl -X POST localhost:8080 -d 'ACTIVATION=[40,44]'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		opts := server.Options{
			SampleRate:     cfg.SampleRate,
			IdleRelease:    cfg.Server.IdleRelease,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			NewSynthesizer: func() (*synth.Synthesizer, error) {
				return midiroll.NewSynthesizer(synthMode(), cfg.SampleRate, synthOptions()...)
			},
		}
		if serveLive {
			pl, err := midiroll.NewPlayer(cfg.SampleRate, synthMode(), synthOptions()...)
			if err != nil {
				return err
			}
			defer pl.Stop()
			if err := pl.Start(); err != nil {
				return err
			}
			opts.Listeners = append(opts.Listeners, pl.Listener())
			logrus.Info("live playback enabled")
		}
		if servePort != "" {
			out, err := openMIDIOut(servePort)
			if err != nil {
				return err
			}
			defer out.Close()
			opts.Listeners = append(opts.Listeners, out)
			logrus.Infof("forwarding activations to %s", servePort)
		}
		return server.New(opts).ListenAndServe(addr)
	},
}
