package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"
)

const upperHalfBlock = '▀'

// TerminalSink draws each snapshot into a terminal screen, two image rows
// per cell using upper half blocks. The bottom line is a status line.
type TerminalSink struct {
	mu     sync.Mutex
	screen tcell.Screen
}

// NewTerminalSink takes ownership of an initialized screen.
func NewTerminalSink(screen tcell.Screen) *TerminalSink {
	return &TerminalSink{screen: screen}
}

// OpenTerminal initializes the real terminal.
func OpenTerminal() (*TerminalSink, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.Clear()
	return NewTerminalSink(screen), nil
}

func (s *TerminalSink) Emit(ctx context.Context, index int, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, rows := s.screen.Size()
	if cols <= 0 || rows <= 1 {
		return fmt.Errorf("terminal too small: %dx%d", cols, rows)
	}
	s.screen.Clear()

	b := img.Bounds()
	scale := fitScale(b.Dx(), b.Dy(), cols, (rows-1)*2)
	outW := int(float64(b.Dx()) * scale)
	outH := int(float64(b.Dy()) * scale)
	for cy := 0; cy*2 < outH; cy++ {
		for cx := 0; cx < outW; cx++ {
			top := sample(img, cx, cy*2, scale)
			bottom := top
			if cy*2+1 < outH {
				bottom = sample(img, cx, cy*2+1, scale)
			}
			style := tcell.StyleDefault.Foreground(toTcell(top)).Background(toTcell(bottom))
			s.screen.SetContent(cx, cy, upperHalfBlock, nil, style)
		}
	}

	status := fmt.Sprintf("snapshot %d  %dx%d  (q to quit)", index, b.Dx(), b.Dy())
	for i, r := range []rune(status) {
		if i >= cols {
			break
		}
		s.screen.SetContent(i, rows-1, r, nil, tcell.StyleDefault)
	}
	s.screen.Show()
	return nil
}

// Watch polls terminal events and calls cancel on q, Esc or Ctrl-C. It
// returns when the screen is finalized.
func (s *TerminalSink) Watch(cancel context.CancelFunc) {
	for {
		ev := s.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			s.mu.Lock()
			s.screen.Sync()
			s.mu.Unlock()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
				cancel()
			}
		}
	}
}

func (s *TerminalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen.Fini()
	return nil
}

func fitScale(w, h, maxW, maxH int) float64 {
	sx := float64(maxW) / float64(w)
	sy := float64(maxH) / float64(h)
	if sy < sx {
		return sy
	}
	return sx
}

func sample(img image.Image, x, y int, scale float64) color.NRGBA {
	b := img.Bounds()
	sx := b.Min.X + int(float64(x)/scale)
	sy := b.Min.Y + int(float64(y)/scale)
	if sx >= b.Max.X {
		sx = b.Max.X - 1
	}
	if sy >= b.Max.Y {
		sy = b.Max.Y - 1
	}
	return color.NRGBAModel.Convert(img.At(sx, sy)).(color.NRGBA)
}

func toTcell(c color.NRGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
