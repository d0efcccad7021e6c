package progress

import (
	"sync"
	"time"
)

// Status is a snapshot of upload progress
type Status struct {
	Phase          string
	TotalParts     int64
	DoneParts      int64
	FailedAttempts int64
	TotalBytes     int64
	UploadedBytes  int64
	StartTime      time.Time
	LastUpdateTime time.Time
	CurrentSpeed   float64 // bytes/second over the recent window
	AverageSpeed   float64 // bytes/second since start
	ETA            time.Duration
}

// Tracker tracks upload progress. It is safe for concurrent use.
type Tracker struct {
	mu           sync.RWMutex
	status       Status
	resumedBytes int64
	speedSamples []speedSample
	maxSamples   int
	now          func() time.Time
}

type speedSample struct {
	timestamp time.Time
	bytes     int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	start := now()
	return &Tracker{
		status: Status{
			StartTime:      start,
			LastUpdateTime: start,
		},
		speedSamples: make([]speedSample, 0, 60),
		maxSamples:   60,
		now:          now,
	}
}

// SetTotal sets the number of parts and their combined size.
func (t *Tracker) SetTotal(parts, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.TotalParts = parts
	t.status.TotalBytes = bytes
}

// SetResumed records parts uploaded by an earlier run. They count as done
// but are excluded from speed.
func (t *Tracker) SetResumed(parts, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.DoneParts = parts
	t.status.UploadedBytes = bytes
	t.resumedBytes = bytes
}

// SetPhase records the phase name shown by the display.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Phase = phase
}

// AddPart records one uploaded part of the given size.
func (t *Tracker) AddPart(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.DoneParts++
	t.status.UploadedBytes += bytes
	t.updateSpeed(bytes)
}

// AddFailure records one failed attempt.
func (t *Tracker) AddFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.FailedAttempts++
}

// updateSpeed must be called with the lock held.
func (t *Tracker) updateSpeed(bytes int64) {
	now := t.now()

	t.speedSamples = append(t.speedSamples, speedSample{
		timestamp: now,
		bytes:     bytes,
	})
	if len(t.speedSamples) > t.maxSamples {
		t.speedSamples = t.speedSamples[1:]
	}

	t.calculateCurrentSpeed(now)
	t.calculateAverageSpeed(now)
	t.calculateETA()

	t.status.LastUpdateTime = now
}

// calculateCurrentSpeed uses the samples from the last five seconds.
func (t *Tracker) calculateCurrentSpeed(now time.Time) {
	if len(t.speedSamples) < 2 {
		t.status.CurrentSpeed = 0
		return
	}

	cutoff := now.Add(-5 * time.Second)
	var recentBytes int64
	var firstSample *speedSample

	for i := len(t.speedSamples) - 1; i >= 0; i-- {
		sample := &t.speedSamples[i]
		if sample.timestamp.Before(cutoff) {
			break
		}
		recentBytes += sample.bytes
		firstSample = sample
	}

	t.status.CurrentSpeed = 0
	if firstSample != nil {
		if d := now.Sub(firstSample.timestamp); d > 0 {
			t.status.CurrentSpeed = float64(recentBytes) / d.Seconds()
		}
	}
}

func (t *Tracker) calculateAverageSpeed(now time.Time) {
	elapsed := now.Sub(t.status.StartTime)
	if elapsed > 0 {
		t.status.AverageSpeed = float64(t.status.UploadedBytes-t.resumedBytes) / elapsed.Seconds()
	}
}

func (t *Tracker) calculateETA() {
	if t.status.TotalBytes == 0 || t.status.AverageSpeed == 0 {
		t.status.ETA = 0
		return
	}

	remaining := t.status.TotalBytes - t.status.UploadedBytes
	if remaining <= 0 {
		t.status.ETA = 0
		return
	}

	t.status.ETA = time.Duration(float64(remaining)/t.status.AverageSpeed) * time.Second
}

// GetStatus returns the current status
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}

// PartsPercent returns the share of parts uploaded.
func (t *Tracker) PartsPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return percent(t.status.DoneParts, t.status.TotalParts)
}

// BytesPercent returns the share of bytes uploaded.
func (t *Tracker) BytesPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return percent(t.status.UploadedBytes, t.status.TotalBytes)
}

func percent(done, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
