package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/config"
	"github.com/cbegin/midiroll-go/internal/score"
)

var (
	configPath string
	verbose    bool
	engineFlag string
	sfFlag     string
	stretch    float64
	shift      int

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "midiroll",
	Short: "Piano scores as key trajectories and sound",
	Long: `midiroll turns piano scores (built-in songs or .mid files) into per-step
key activation trajectories, the note events a player would produce, and audio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("engine") {
			cfg.Engine = engineFlag
		}
		if cmd.Flags().Changed("soundfont") {
			cfg.SoundFont = sfFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(cfg.Level())
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "midiroll.yaml", "YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&engineFlag, "engine", config.EngineFM, "synth engine: fm|soundfont")
	pf.StringVar(&sfFlag, "soundfont", "", "SoundFont2 bank for the soundfont engine")
	pf.Float64Var(&stretch, "stretch", 1, "tempo stretch factor applied to the score")
	pf.IntVar(&shift, "shift", 0, "transpose the score by semitones")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func loadScore(nameOrPath string) (*score.Score, error) {
	s, err := midiroll.LoadScore(nameOrPath, stretch, shift)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("loaded %s", s.Describe())
	return s, nil
}

func synthOptions() []midiroll.Option {
	return []midiroll.Option{
		midiroll.WithSoundFont(cfg.SoundFont),
		midiroll.WithEffects(cfg.Effects()),
	}
}

func synthMode() midiroll.SynthMode {
	return midiroll.SynthMode(cfg.Engine)
}
