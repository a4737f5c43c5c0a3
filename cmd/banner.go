package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/kiranaconnect/kirana/internal/build"
	"github.com/kiranaconnect/kirana/internal/config"
)

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32"))
	bannerKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	bannerBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2E7D32")).
			Padding(0, 2)
)

// printBanner writes the startup banner to stdout. All structured logs go to
// the log file instead.
func printBanner(cfg *config.AppConfig, logFile string) {
	fmt.Println(renderBanner(cfg, logFile))
}

func renderBanner(cfg *config.AppConfig, logFile string) string {
	row := func(k, v string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, bannerKey.Render(k), v)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		bannerTitle.Render("KiranaConnect reminders "+build.Version),
		"",
		row("API", fmt.Sprintf("http://localhost:%d/api", cfg.Port)),
		row("Store", cfg.StoreDriver),
		row("Copy", cfg.LLMProvider),
		row("Reminders", fmt.Sprintf("every %s x%v, max %d", cfg.BaseInterval, cfg.Escalation, cfg.MaxNotifications)),
		row("Sweep", fmt.Sprintf("every %s, idle > %s", cfg.SweepInterval, cfg.AbandonThreshold)),
		row("Logs", logFile),
	)
	return bannerBox.Render(body)
}
