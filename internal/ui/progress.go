package ui

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps progressbar/v3 with ipkg styling
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar for a known-length operation.
// The unit is plan steps, not bytes.
func NewProgressBar(max int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// NewIndeterminateProgressBar creates a spinner for unknown-length operations
func NewIndeterminateProgressBar(description string) *ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(10),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Add increments the progress bar by n
func (p *ProgressBar) Add(n int) error {
	return p.bar.Add(n)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Clear clears the progress bar
func (p *ProgressBar) Clear() error {
	return p.bar.Clear()
}

// Describe changes the description of the progress bar
func (p *ProgressBar) Describe(description string) {
	p.bar.Describe(description)
}

// IsFinished returns true if the progress bar is finished
func (p *ProgressBar) IsFinished() bool {
	return p.bar.IsFinished()
}
