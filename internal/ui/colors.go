package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Color scheme for ipkg
var (
	// Primary actions
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	// Secondary actions
	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)

	// Status indicators
	CheckMark = color.GreenString("✓")
	CrossMark = color.RedString("✗")
	Arrow     = color.CyanString("→")
	Bullet    = color.HiBlackString("•")

	// Plan action colors
	actionInstall = color.New(color.FgGreen)
	actionUpgrade = color.New(color.FgCyan)
	actionKeep    = color.New(color.Faint)
	actionRemove  = color.New(color.FgRed)
)

// InitColors initializes color settings based on environment
func InitColors() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	// Respect TERM environment variable
	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Fprintf(os.Stdout, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(os.Stderr, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Fprintf(os.Stderr, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Fprintf(os.Stdout, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// PrintKeyValue prints a key-value pair with color
func PrintKeyValue(key, value string) {
	Bold.Fprintf(os.Stdout, "%s: ", key)
	fmt.Fprintln(os.Stdout, value)
}

// PrintHeader prints a section header
func PrintHeader(text string) {
	fmt.Fprintln(os.Stdout)
	Bold.Fprintln(os.Stdout, text)
	Muted.Fprintln(os.Stdout, "────────────────────────────────────────")
}

// PrintSubheader prints a subsection header
func PrintSubheader(text string) {
	fmt.Fprintln(os.Stdout)
	Highlight.Fprintln(os.Stdout, text)
}

// ColorizeAction returns a colored plan action verb
func ColorizeAction(action string) string {
	switch action {
	case "install":
		return actionInstall.Sprint(action)
	case "upgrade":
		return actionUpgrade.Sprint(action)
	case "keep":
		return actionKeep.Sprint(action)
	case "remove":
		return actionRemove.Sprint(action)
	default:
		return action
	}
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(os.Stdout, "  %s %s\n", Bullet, item)
	}
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}
