package main

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/config"
	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/numeric"
	"github.com/cbegin/midiroll-go/internal/trajectory"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 880
	minWindowH = 520

	textScale = 2
	lineH     = 14 * textScale

	// pixels per second of score in the falling roll
	rollSpeed = 160.0
)

var (
	bgColor     = color.RGBA{192, 192, 192, 255}
	panelColor  = color.RGBA{192, 192, 192, 255}
	borderColor = color.RGBA{128, 128, 128, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	sunkenBgColor = color.RGBA{24, 24, 32, 255}

	noteWhiteColor = color.RGBA{120, 200, 255, 255}
	noteBlackColor = color.RGBA{255, 110, 160, 255}
	pressedColor   = color.RGBA{0, 0, 128, 255}
	pedalColor     = color.RGBA{90, 220, 140, 255}
)

type game struct {
	player *midiroll.Player
	tr     *trajectory.Trajectory
	events []midimsg.Message
	title  string

	volume float64
	paused bool
	status string

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(cfg config.Config, nameOrPath string) (*game, error) {
	s, err := midiroll.LoadScore(nameOrPath, 1, 0)
	if err != nil {
		return nil, err
	}
	tr, err := midiroll.BuildTrajectory(s, cfg.DT, cfg.InitialBufferTime)
	if err != nil {
		return nil, err
	}
	if tr.Len() == 0 {
		return nil, errors.Errorf("%s: empty trajectory", nameOrPath)
	}
	events, err := midiroll.EventsFromScore(s)
	if err != nil {
		return nil, err
	}
	pl, err := midiroll.NewPlayer(cfg.SampleRate, midiroll.SynthMode(cfg.Engine),
		midiroll.WithSoundFont(cfg.SoundFont), midiroll.WithEffects(cfg.Effects()))
	if err != nil {
		return nil, err
	}
	title := s.Title
	if title == "" {
		title = nameOrPath
	}
	return &game{
		player:    pl,
		tr:        tr,
		events:    shift(events, cfg.InitialBufferTime),
		title:     title,
		volume:    1,
		status:    "Space: play/pause  R: restart  M: mute  Up/Down: volume",
		textCache: make(map[string]*ebiten.Image, 256),
		viewW:     windowW,
		viewH:     windowH,
	}, nil
}

// shift delays events so sound lines up with the padded trajectory.
func shift(events []midimsg.Message, by float64) []midimsg.Message {
	if by == 0 {
		return events
	}
	out := make([]midimsg.Message, len(events))
	for i, ev := range events {
		switch m := ev.(type) {
		case midimsg.NoteOn:
			m.Time += by
			out[i] = m
		case midimsg.NoteOff:
			m.Time += by
			out[i] = m
		case midimsg.SustainOn:
			m.Time += by
			out[i] = m
		case midimsg.SustainOff:
			m.Time += by
			out[i] = m
		default:
			panic(fmt.Sprintf("unsupported message %T", ev))
		}
	}
	return out
}

func (g *game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlayPause()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.restart()
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		g.player.Mute(!g.player.Muted())
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.setVolume(g.volume + 0.1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.setVolume(g.volume - 0.1)
	}
	return nil
}

func (g *game) togglePlayPause() {
	if g.paused {
		g.player.Resume()
	} else {
		g.player.Pause()
	}
	g.paused = !g.paused
}

func (g *game) restart() {
	if err := g.player.Play(g.events); err != nil {
		g.status = err.Error()
		return
	}
	g.paused = false
}

func (g *game) setVolume(v float64) {
	g.volume = numeric.Clamp(v, 0, 2)
	g.player.SetMasterVolume(g.volume)
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	header := image.Rect(8, 8, g.viewW-8, 8+lineH+12)
	keyboard := image.Rect(8, g.viewH-8-lineH-12-90, g.viewW-8, g.viewH-8-lineH-12)
	roll := image.Rect(8, header.Max.Y+6, g.viewW-8, keyboard.Min.Y)
	status := image.Rect(8, keyboard.Max.Y+4, g.viewW-8, g.viewH-8)

	pos := g.player.Position()
	step := min(int(pos/g.tr.DT), g.tr.Len()-1)
	goal, _ := g.tr.Goal(max(step, 0))

	g.drawPanel(screen, header)
	g.drawText(screen, fmt.Sprintf("%s  %6.2fs / %.2fs", g.title, pos, g.tr.Duration()), header.Min.X+8, header.Min.Y+6)

	g.drawSunkenPanel(screen, roll)
	g.drawRoll(screen, roll, pos)

	g.drawPanel(screen, keyboard)
	g.drawKeyboard(screen, keyboard.Inset(4), goal)
	if g.player.Sustained() {
		ebitenutil.DrawRect(screen, float64(keyboard.Max.X-24), float64(keyboard.Min.Y+4), 16, 16, pedalColor)
	}

	g.drawSunkenPanel(screen, status)
	vol := fmt.Sprintf("vol %.1f", g.volume)
	if g.player.Muted() {
		vol = "muted"
	}
	g.drawText(screen, g.status+"  "+vol, status.Min.X+8, status.Min.Y+4)
}

func keyRect(rect image.Rectangle, key int) (x, w float64) {
	w = float64(rect.Dx()) / keys.NumKeys
	return float64(rect.Min.X) + float64(key)*w, w
}

// drawRoll shows upcoming steps falling toward the keyboard.
func (g *game) drawRoll(screen *ebiten.Image, rect image.Rectangle, pos float64) {
	inner := rect.Inset(2)
	visible := float64(inner.Dy()) / rollSpeed
	first := max(int(pos/g.tr.DT), 0)
	last := min(int((pos+visible)/g.tr.DT)+1, g.tr.Len())
	h := math.Max(g.tr.DT*rollSpeed, 1)
	for i := first; i < last; i++ {
		y := float64(inner.Max.Y) - (float64(i)*g.tr.DT-pos)*rollSpeed - h
		for _, n := range g.tr.Notes[i] {
			x, w := keyRect(inner, n.Key)
			col := noteWhiteColor
			if keys.IsBlack(n.Key) {
				col = noteBlackColor
			}
			top := math.Max(y, float64(inner.Min.Y))
			ebitenutil.DrawRect(screen, x+1, top, math.Max(w-2, 1), y+h-top, col)
		}
	}
}

func (g *game) drawKeyboard(screen *ebiten.Image, rect image.Rectangle, pressed [keys.NumKeys]bool) {
	for k := keys.MinKey; k <= keys.MaxKey; k++ {
		x, w := keyRect(rect, k)
		col := color.Color(bevelLight)
		height := float64(rect.Dy())
		if keys.IsBlack(k) {
			col = bevelDarker
			height *= 0.62
		}
		if pressed[k] {
			col = pressedColor
		}
		ebitenutil.DrawRect(screen, x, float64(rect.Min.Y), math.Max(w-1, 1), height, col)
	}
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func (g *game) Close() { _ = g.player.Stop() }

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "midiroll_view <score>",
	Short: "Watch a score's key trajectory while it plays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logrus.SetLevel(cfg.Level())

		g, err := newGame(cfg, args[0])
		if err != nil {
			return err
		}
		defer g.Close()
		g.restart()

		ebiten.SetWindowSize(windowW, windowH)
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
		ebiten.SetWindowTitle("midiroll " + g.title)
		return ebiten.RunGame(g)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "midiroll.yaml", "YAML config file")
	cobra.CheckErr(rootCmd.Execute())
}
