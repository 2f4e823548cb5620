// Package version carries the build identity stamped in at link time.
package version

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

var (
	Name        = "gantry"
	Description = "Edge proxy with per-origin connection pooling"
	Version     = "v0.1.0"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText = "github.com/gantryio/gantry"
	GithubHomeUri  = "https://github.com/gantryio/gantry"
)

// Banner renders the startup banner. Styling degrades to plain text when the
// terminal has no colour support.
func Banner(extendedInfo bool) string {
	var b strings.Builder

	splash := pterm.NewStyle(pterm.FgLightMagenta)
	b.WriteString(splash.Sprint(`
  ██████╗  █████╗ ███╗   ██╗████████╗██████╗ ██╗   ██╗
 ██╔════╝ ██╔══██╗████╗  ██║╚══██╔══╝██╔══██╗╚██╗ ██╔╝
 ██║  ███╗███████║██╔██╗ ██║   ██║   ██████╔╝ ╚████╔╝
 ██║   ██║██╔══██║██║╚██╗██║   ██║   ██╔══██╗  ╚██╔╝
 ╚██████╔╝██║  ██║██║ ╚████║   ██║   ██║  ██║   ██║
  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝   ╚═╝`))
	b.WriteString("\n ")
	b.WriteString(pterm.NewStyle(pterm.FgCyan).Sprint(GithubHomeText))
	b.WriteString("  ")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint(Version))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	return b.String()
}

// String returns the one-line version identity for logs.
func String() string {
	return fmt.Sprintf("%s %s (%s, %s)", Name, Version, Commit, Date)
}
