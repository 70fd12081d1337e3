package banner

import (
	"loadtest/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
    __                ____            __
   / /___  ____ _____/ / /____  _____/ /_
  / / __ \/ __ '/ __  / __/ _ \/ ___/ __/
 / / /_/ / /_/ / /_/ / /_/  __(__  ) /_
/_/\____/\__,_/\__,_/\__/\___/____/\__/  `

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
