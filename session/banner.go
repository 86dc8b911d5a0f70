package session

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// hutchColors assigns each hutch its traditional terminal color
var hutchColors = map[string]lipgloss.Color{
	"amo": lipgloss.Color("27"),
	"sxr": lipgloss.Color("250"),
	"xpp": lipgloss.Color("40"),
	"xcs": lipgloss.Color("93"),
	"mfx": lipgloss.Color("202"),
	"cxi": lipgloss.Color("196"),
	"mec": lipgloss.Color("214"),
	"tmo": lipgloss.Color("45"),
	"rix": lipgloss.Color("135"),
}

// Banner renders the session banner for a hutch. An empty hutch name
// renders the generic banner.
func Banner(hutch string) string {
	name := hutch
	if name == "" {
		name = "hutch"
	}
	title := strings.ToUpper(name) + " Python"

	style := lipgloss.NewStyle().
		Bold(true).
		Padding(1, 4).
		Border(lipgloss.DoubleBorder())
	if color, ok := hutchColors[strings.ToLower(hutch)]; ok {
		style = style.Foreground(color).BorderForeground(color)
	}

	return style.Render(title) + "\n"
}

// PrintBanner writes the banner to stdout
func PrintBanner(hutch string) {
	fmt.Print(Banner(hutch))
}
