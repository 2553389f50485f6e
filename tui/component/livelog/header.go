package livelog

import (
	"fmt"
	"time"
)

type headerModel struct {
	guildFilter string
	guildCount  int
}

func newHeaderModel(guildFilter string) headerModel {
	return headerModel{guildFilter: guildFilter}
}

func (h headerModel) view(width int) string {
	title := "gatekeeper audit"

	scope := fmt.Sprintf("%d guilds", h.guildCount)
	if h.guildFilter != "" {
		scope = "guild " + h.guildFilter
	}

	clock := time.Now().Format("15:04:05")

	content := fmt.Sprintf(" %s | %s | %s", title, scope, clock)
	return headerStyle.Width(width).Render(content)
}
