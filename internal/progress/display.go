package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Display redraws the tracker status on a ticker until stopped
type Display struct {
	tracker  *Tracker
	interval time.Duration
	out      io.Writer
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewDisplay creates a display writing to out
func NewDisplay(tracker *Tracker, interval time.Duration, out io.Writer) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		out:      out,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start starts the redraw loop
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the loop and prints the summary. It waits for the summary to
// be written.
func (d *Display) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		<-d.done
	})
}

func (d *Display) displayLoop() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Fprint(d.out, "\r"+d.statusLine(d.tracker.GetStatus()))
		case <-d.stopCh:
			fmt.Fprintln(d.out)
			fmt.Fprintln(d.out, strings.Join(d.summary(d.tracker.GetStatus()), "\n"))
			return
		}
	}
}

func (d *Display) statusLine(status Status) string {
	pct := d.tracker.BytesPercent()
	if status.TotalBytes == 0 {
		pct = d.tracker.PartsPercent()
	}

	return fmt.Sprintf("%-10s %s part %d/%d  %s/%s  %s  eta %s",
		status.Phase,
		progressBar(pct, 30),
		status.DoneParts, status.TotalParts,
		humanize.IBytes(uint64(status.UploadedBytes)), humanize.IBytes(uint64(status.TotalBytes)),
		FormatSpeed(status.CurrentSpeed),
		FormatDuration(status.ETA),
	)
}

func (d *Display) summary(status Status) []string {
	elapsed := d.tracker.now().Sub(status.StartTime)

	return []string{
		fmt.Sprintf("Upload %s", status.Phase),
		strings.Repeat("=", 40),
		fmt.Sprintf("Parts:           %d/%d", status.DoneParts, status.TotalParts),
		fmt.Sprintf("Data:            %s", humanize.IBytes(uint64(status.UploadedBytes))),
		fmt.Sprintf("Failed attempts: %d", status.FailedAttempts),
		fmt.Sprintf("Elapsed:         %s", FormatDuration(elapsed)),
		fmt.Sprintf("Average speed:   %s", FormatSpeed(status.AverageSpeed)),
	}
}

func progressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("[%s] %5.1f%%", bar, percent)
}

// FormatSpeed formats bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatDuration formats d as 1h2m3s, dropping leading zero units.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
