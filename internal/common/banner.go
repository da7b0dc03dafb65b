package common

import (
	"strconv"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner with the build, the run mode and
// the JDK ladder plugins are verified against.
func PrintBanner(info BuildInfo, config *Config) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetWidth(60).
		SetBorderColor(banner.ColorCyan).
		SetTextColor(banner.ColorPrimaryGreen).
		SetBold(true)

	b.PrintTopLine()
	b.PrintCenteredText("MODERNIZER")
	b.PrintCenteredText("Jenkins plugin fleet modernization")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", info.Version, 12)
	b.PrintKeyValue("Mode", config.RunMode(), 12)
	b.PrintKeyValue("JDK ladder", info.LadderString(), 12)
	b.PrintKeyValue("Concurrency", strconv.Itoa(config.Run.Concurrency), 12)
	b.PrintKeyValue("Branch", config.Run.Branch, 12)
	b.PrintBottomLine()
}
