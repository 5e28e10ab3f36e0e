package preview

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(w, h)
	return screen
}

func TestTerminalSinkDrawsHalfBlocks(t *testing.T) {
	screen := newSimScreen(t, 10, 3)
	sink := NewTerminalSink(screen)
	defer sink.Close()

	img := image.NewNRGBA(image.Rect(0, 0, 10, 4))
	for x := 0; x < 10; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{R: 255, A: 255})
		img.SetNRGBA(x, 1, color.NRGBA{B: 255, A: 255})
		img.SetNRGBA(x, 2, color.NRGBA{R: 255, A: 255})
		img.SetNRGBA(x, 3, color.NRGBA{B: 255, A: 255})
	}

	if err := sink.Emit(context.Background(), 3, img); err != nil {
		t.Fatalf("emit: %v", err)
	}

	mainc, _, style, _ := screen.GetContent(0, 0)
	if mainc != upperHalfBlock {
		t.Fatalf("expected half block, got %q", mainc)
	}
	fg, bg, _ := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) {
		t.Fatalf("expected red foreground, got %v", fg)
	}
	if bg != tcell.NewRGBColor(0, 0, 255) {
		t.Fatalf("expected blue background, got %v", bg)
	}

	var status strings.Builder
	for x := 0; x < 10; x++ {
		r, _, _, _ := screen.GetContent(x, 2)
		status.WriteRune(r)
	}
	if !strings.HasPrefix(status.String(), "snapshot 3") {
		t.Fatalf("unexpected status line %q", status.String())
	}
}

func TestTerminalSinkRejectsTinyScreen(t *testing.T) {
	screen := newSimScreen(t, 5, 1)
	sink := NewTerminalSink(screen)
	defer sink.Close()

	if err := sink.Emit(context.Background(), 1, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("expected error for a screen without drawing rows")
	}
}

func TestFitScaleKeepsAspect(t *testing.T) {
	if got := fitScale(100, 50, 50, 100); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := fitScale(10, 40, 100, 20); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}
