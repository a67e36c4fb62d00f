package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	terminalWidthBackup = 80
	minBarWidth         = 10
	barChar             = "#"
	colorBar            = "\x1b[36m"
	colorReset          = "\x1b[0m"
)

// Bar is one labelled value in a bar chart.
type Bar struct {
	Label string
	Value float64
}

// RenderBars prints a horizontal bar chart scaled to totalWidth columns.
// A non-positive totalWidth uses the terminal width.
func RenderBars(w io.Writer, title string, bars []Bar, totalWidth int, forceColor bool) error {
	if len(bars) == 0 {
		return nil
	}
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	labelWidth := 0
	maxVal := 0.0
	for _, b := range bars {
		labelWidth = max(labelWidth, runewidth.StringWidth(b.Label))
		maxVal = math.Max(maxVal, b.Value)
	}
	valueWidth := len(fmt.Sprintf("%.0f", maxVal))
	barWidth := max(totalWidth-labelWidth-valueWidth-4, minBarWidth)
	useColor := shouldUseColor(w, forceColor)

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for _, b := range bars {
		n := 0
		if maxVal > 0 {
			n = int(math.Round(b.Value / maxVal * float64(barWidth)))
		}
		bar := strings.Repeat(barChar, n)
		if useColor && n > 0 {
			bar = colorBar + bar + colorReset
		}
		line := fmt.Sprintf("%s | %*.0f %s", runewidth.FillRight(b.Label, labelWidth), valueWidth, b.Value, bar)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
