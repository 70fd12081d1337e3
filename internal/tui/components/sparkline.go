package components

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline renders the last Width values as a one-line bar chart, scaled
// to the largest visible value. The label carries the latest value and the
// peak of the window.
type Sparkline struct {
	Data  []uint64
	Width int
	Max   uint64
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]uint64, 0, max(width, 0)),
	}
}

func (s *Sparkline) Add(val uint64) {
	s.Data = append(s.Data, val)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-max(s.Width, 0):]
	}
	if len(s.Data) == 0 {
		s.Max = 0
		return
	}
	s.Max = slices.Max(s.Data)
}

// Last is the most recent value, 0 before the first Add.
func (s Sparkline) Last() uint64 {
	if len(s.Data) == 0 {
		return 0
	}
	return s.Data[len(s.Data)-1]
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	header := fmt.Sprintf("%s  %d (peak %d)", s.Label, s.Last(), s.Max)

	graph := make([]rune, 0, s.Width)
	for _, v := range s.Data {
		idx := 0
		if s.Max > 0 {
			idx = int(v * uint64(len(levels)-1) / s.Max)
		}
		graph = append(graph, levels[idx])
	}
	for len(graph) < s.Width {
		graph = append(graph, ' ')
	}

	return s.Style.Render(header) + "\n" + s.Style.Render(string(graph))
}
