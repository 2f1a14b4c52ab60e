package reliability

import (
	"math"

	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

// RTTInfo is the adaptive round-trip estimate driving the resend
// timer (spec.md §3, §4.3).
type RTTInfo struct {
	LastRtt          int
	SmoothedRtt      float64
	SmoothedVariance float64
	ResendTimeout    int
}

// defaultRTTInfo is the spec.md-mandated initial estimate: (50, 50, 5, 50).
func defaultRTTInfo() RTTInfo {
	return RTTInfo{LastRtt: 50, SmoothedRtt: 50, SmoothedVariance: 5, ResendTimeout: 50}
}

type localTimerEntry struct {
	SequenceId  int32
	SentTime    int64
	ReceiveTime int64
}

type remoteTimerEntry struct {
	SequenceId  int32
	ReceiveTime int64
}

// Timers is the per-sequence send/receive timestamp table plus the
// RTT estimator that feeds off it (spec.md §3 "Timer table", §4.3).
type Timers struct {
	capacity uint32
	local    []localTimerEntry
	remote   []remoteTimerEntry

	rtt RTTInfo

	minResend int
	maxResend int
}

// NewTimers allocates a timer table sized to the window and seeds the
// RTT estimator with the spec-mandated defaults.
func NewTimers(capacity uint32, minResend, maxResend int) *Timers {
	t := &Timers{
		capacity:  capacity,
		local:     make([]localTimerEntry, capacity),
		remote:    make([]remoteTimerEntry, capacity),
		rtt:       defaultRTTInfo(),
		minResend: minResend,
		maxResend: maxResend,
	}
	for i := range t.local {
		t.local[i].SequenceId = NullEntry
	}
	for i := range t.remote {
		t.remote[i].SequenceId = NullEntry
	}
	return t
}

func (t *Timers) index(seq seqnum.ID) uint32 {
	return uint32(seq) % t.capacity
}

// RecordSend stamps the local timer slot for a freshly sent seq.
func (t *Timers) RecordSend(seq seqnum.ID, now int64) {
	t.local[t.index(seq)] = localTimerEntry{SequenceId: int32(seq), SentTime: now}
}

// RecordReceive stamps the remote timer slot for a freshly received
// seq, used later to report processing delay back to the peer.
func (t *Timers) RecordReceive(seq seqnum.ID, now int64) {
	t.remote[t.index(seq)] = remoteTimerEntry{SequenceId: int32(seq), ReceiveTime: now}
}

// ProcessingTimeFor computes the ms between us receiving ackedSeq and
// now, clipped to [0, 65535] as the wire field requires. Returns 0 if
// ackedSeq was never recorded (nothing to report yet).
func (t *Timers) ProcessingTimeFor(ackedSeq seqnum.ID, now int64) uint16 {
	e := t.remote[t.index(ackedSeq)]
	if e.SequenceId != int32(ackedSeq) {
		return 0
	}
	d := now - e.ReceiveTime
	if d < 0 {
		d = 0
	}
	if d > 65535 {
		d = 65535
	}
	return uint16(d)
}

// OnAck feeds a returned ack covering ackedSeq into the RTT estimator,
// per spec.md §4.3. Only the first ack for a given seq is honored —
// duplicate or resent acks of the same seq are ignored so they cannot
// bias the estimate.
func (t *Timers) OnAck(ackedSeq seqnum.ID, processingTime uint16, now int64) {
	e := &t.local[t.index(ackedSeq)]
	if e.SequenceId != int32(ackedSeq) || e.ReceiveTime != 0 {
		return
	}
	e.ReceiveTime = now

	lastRtt := now - e.SentTime - int64(processingTime)
	if lastRtt < 1 {
		lastRtt = 1
	}
	t.rtt.LastRtt = int(lastRtt)

	delta := float64(lastRtt) - t.rtt.SmoothedRtt
	t.rtt.SmoothedRtt += delta / 8

	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	t.rtt.SmoothedVariance += (absDelta - t.rtt.SmoothedVariance) / 4

	t.rtt.ResendTimeout = int(math.Round(t.rtt.SmoothedRtt + 4*t.rtt.SmoothedVariance))
}

// CurrentResendTime returns ResendTimeout clamped to
// [MinimumResendTime, MaximumResendTime] (spec.md invariant I5).
func (t *Timers) CurrentResendTime() int {
	v := t.rtt.ResendTimeout
	if v < t.minResend {
		return t.minResend
	}
	if v > t.maxResend {
		return t.maxResend
	}
	return v
}

// RTTInfo returns a snapshot of the current RTT estimate.
func (t *Timers) RTTInfo() RTTInfo {
	return t.rtt
}
