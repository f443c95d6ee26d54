// Package supervisor runs one hashcat child process at a time, parses its
// status stream, and responds to pause/resume/cancel, grounded on
// core/status_monitor.py (the regex set and unit table) and the
// process-lifecycle shape of a real hashcat-driving agent in the broader
// retrieval pack.
package supervisor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reStatus    = regexp.MustCompile(`Status\.*:\s*(.+)`)
	reSpeed     = regexp.MustCompile(`Speed\.#(\d+)\.*:\s*([\d.]+)\s*([kMGT]?H/s)`)
	reProgress  = regexp.MustCompile(`Progress\.*:\s*(\d+)/(\d+)\s*\((\d+(?:\.\d+)?)%\)`)
	reRecovered = regexp.MustCompile(`Recovered\.*:\s*(\d+)/(\d+)\s*\((\d+(?:\.\d+)?)%\)`)
	reTemp      = regexp.MustCompile(`Temp:\s*(\d+)c`)
	reUtil      = regexp.MustCompile(`Util\.#(\d+)\.*:\s*(\d+)%`)
	reStarted   = regexp.MustCompile(`Time\.Started\.*:\s*(.+)`)
	reEstimated = regexp.MustCompile(`Time\.Estimated\.*:\s*(.+)`)
	reRejected  = regexp.MustCompile(`Rejected`)
)

var speedMultiplier = map[string]float64{
	"H/s":  1,
	"kH/s": 1e3,
	"MH/s": 1e6,
	"GH/s": 1e9,
	"TH/s": 1e12,
}

// DeviceStatus is one device's contribution to a StatusEvent.
type DeviceStatus struct {
	ID    int
	Speed float64 // hashes/sec, normalized
	Temp  int
	Util  int
}

// StatusEvent is delivered to subscribers on the broadcast interval.
type StatusEvent struct {
	SessionID      string
	AttackName     string
	StatusLabel    string
	ProgressPct    float64
	TotalSpeed     float64
	Devices        []DeviceStatus
	Recovered      int
	RecoveredTotal int
	Started        string
	ETA            string
	Runtime        time.Duration
}

// statusParser accumulates raw status lines across one child process's
// lifetime and extracts StatusEvent snapshots from the current buffer.
type statusParser struct {
	lines   []string
	devices map[int]*DeviceStatus
}

func newStatusParser() *statusParser {
	return &statusParser{devices: make(map[int]*DeviceStatus)}
}

// Feed appends one line of the child's stdout/status stream.
func (sp *statusParser) Feed(line string) {
	sp.lines = append(sp.lines, line)
	if m := reSpeed.FindStringSubmatch(line); m != nil {
		id, _ := strconv.Atoi(m[1])
		val, _ := strconv.ParseFloat(m[2], 64)
		mult := speedMultiplier[m[3]]
		d := sp.device(id)
		d.Speed = val * mult
	}
	if m := reTemp.FindStringSubmatch(line); m != nil {
		// Temp lines in native hashcat output aren't device-indexed;
		// applied to the highest-numbered device seen so far to keep this
		// parser tolerant of both layouts.
		if d := sp.lastDevice(); d != nil {
			t, _ := strconv.Atoi(m[1])
			d.Temp = t
		}
	}
	if m := reUtil.FindStringSubmatch(line); m != nil {
		id, _ := strconv.Atoi(m[1])
		u, _ := strconv.Atoi(m[2])
		sp.device(id).Util = u
	}
}

func (sp *statusParser) device(id int) *DeviceStatus {
	d, ok := sp.devices[id]
	if !ok {
		d = &DeviceStatus{ID: id}
		sp.devices[id] = d
	}
	return d
}

func (sp *statusParser) lastDevice() *DeviceStatus {
	var max *DeviceStatus
	for _, d := range sp.devices {
		if max == nil || d.ID > max.ID {
			max = d
		}
	}
	return max
}

// ReadyToPublish is "complete enough to publish": the buffer contains
// Time.Estimated, or Rejected, or more than ten lines.
func (sp *statusParser) ReadyToPublish() bool {
	if len(sp.lines) > 10 {
		return true
	}
	joined := strings.Join(sp.lines, "\n")
	return reEstimated.MatchString(joined) || reRejected.MatchString(joined)
}

// Snapshot builds a StatusEvent from the lines accumulated so far.
func (sp *statusParser) Snapshot(sessionID, attackName string, startedAt time.Time) StatusEvent {
	joined := strings.Join(sp.lines, "\n")
	ev := StatusEvent{SessionID: sessionID, AttackName: attackName, Runtime: time.Since(startedAt)}

	if m := reStatus.FindStringSubmatch(joined); m != nil {
		ev.StatusLabel = strings.TrimSpace(m[1])
	}
	if m := reProgress.FindStringSubmatch(joined); m != nil {
		ev.ProgressPct, _ = strconv.ParseFloat(m[3], 64)
	}
	if m := reRecovered.FindStringSubmatch(joined); m != nil {
		ev.Recovered, _ = strconv.Atoi(m[1])
		ev.RecoveredTotal, _ = strconv.Atoi(m[2])
	}
	if m := reStarted.FindStringSubmatch(joined); m != nil {
		ev.Started = strings.TrimSpace(m[1])
	}
	if m := reEstimated.FindStringSubmatch(joined); m != nil {
		ev.ETA = strings.TrimSpace(m[1])
	}

	var total float64
	devs := make([]DeviceStatus, 0, len(sp.devices))
	for _, d := range sp.devices {
		devs = append(devs, *d)
		total += d.Speed
	}
	ev.Devices = devs
	ev.TotalSpeed = total

	return ev
}

// reset clears the accumulated line buffer, keeping device totals, so a
// fresh "complete enough to publish" window can start without losing the
// latest per-device readings between windows.
func (sp *statusParser) reset() {
	sp.lines = sp.lines[:0]
}
