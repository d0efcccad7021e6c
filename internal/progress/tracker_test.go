package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTracker_Parts(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := newTracker(clock.now)
	tracker.SetTotal(4, 400)
	tracker.SetPhase("uploading")

	clock.advance(time.Second)
	tracker.AddPart(100)
	clock.advance(time.Second)
	tracker.AddPart(100)
	tracker.AddFailure()

	status := tracker.GetStatus()
	assert.Equal(t, "uploading", status.Phase)
	assert.Equal(t, int64(2), status.DoneParts)
	assert.Equal(t, int64(200), status.UploadedBytes)
	assert.Equal(t, int64(1), status.FailedAttempts)
	assert.InDelta(t, 100.0, status.AverageSpeed, 0.001)
	assert.InDelta(t, 200.0, status.CurrentSpeed, 0.001)
	assert.Equal(t, 2*time.Second, status.ETA)
	assert.InDelta(t, 50.0, tracker.PartsPercent(), 0.001)
	assert.InDelta(t, 50.0, tracker.BytesPercent(), 0.001)
}

func TestTracker_ResumedPartsExcludedFromSpeed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := newTracker(clock.now)
	tracker.SetTotal(3, 300)
	tracker.SetResumed(2, 200)

	clock.advance(2 * time.Second)
	tracker.AddPart(100)

	status := tracker.GetStatus()
	assert.Equal(t, int64(3), status.DoneParts)
	assert.InDelta(t, 50.0, status.AverageSpeed, 0.001)
	assert.Equal(t, time.Duration(0), status.ETA)
	assert.InDelta(t, 100.0, tracker.PartsPercent(), 0.001)
}

func TestTracker_EmptyTotals(t *testing.T) {
	tracker := NewTracker()

	assert.Zero(t, tracker.PartsPercent())
	assert.Zero(t, tracker.BytesPercent())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "--", FormatDuration(0))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m1s", FormatDuration(time.Hour+time.Minute+time.Second))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "512 B/s", FormatSpeed(512))
	assert.Equal(t, "2.0 MiB/s", FormatSpeed(2*1024*1024))
	assert.Equal(t, "0 B/s", FormatSpeed(-1))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[#####-----]  50.0%", progressBar(50, 10))
	assert.Equal(t, "[##########] 100.0%", progressBar(150, 10))
	assert.Equal(t, "[----------]   0.0%", progressBar(-3, 10))
}

func TestDisplay_StopPrintsSummary(t *testing.T) {
	tracker := NewTracker()
	tracker.SetTotal(2, 2048)
	tracker.AddPart(1024)
	tracker.AddPart(1024)
	tracker.SetPhase("completed")

	var out bytes.Buffer
	display := NewDisplay(tracker, time.Hour, &out)
	display.Start()
	display.Stop()
	display.Stop()

	assert.Contains(t, out.String(), "Upload completed")
	assert.Contains(t, out.String(), "Parts:           2/2")
	assert.Contains(t, out.String(), "2.0 KiB")
}
