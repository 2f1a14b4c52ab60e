package reliability

import "testing"

func TestTimersDefaultRTT(t *testing.T) {
	tm := NewTimers(4, 64, 200)
	info := tm.RTTInfo()
	if info.LastRtt != 50 || info.SmoothedRtt != 50 || info.SmoothedVariance != 5 || info.ResendTimeout != 50 {
		t.Errorf("unexpected default RTT info: %+v", info)
	}
	// The default ResendTimeout of 50 sits below MinimumResendTime, so the
	// current resend time is clamped up to 64.
	if got := tm.CurrentResendTime(); got != 64 {
		t.Errorf("expected default current resend time 64, got %d", got)
	}
}

func TestTimersOnAckUpdatesEstimate(t *testing.T) {
	tm := NewTimers(4, 64, 200)

	tm.RecordSend(0, 0)
	tm.OnAck(0, 0, 100) // 100ms RTT, no processing delay

	info := tm.RTTInfo()
	if info.LastRtt != 100 {
		t.Errorf("expected LastRtt 100, got %d", info.LastRtt)
	}
	// SmoothedRtt moves 1/8 of the way from 50 toward 100.
	if info.SmoothedRtt <= 50 || info.SmoothedRtt >= 100 {
		t.Errorf("expected SmoothedRtt to move toward 100, got %f", info.SmoothedRtt)
	}
}

func TestTimersIgnoresDuplicateAckOfSameSeq(t *testing.T) {
	tm := NewTimers(4, 64, 200)
	tm.RecordSend(0, 0)
	tm.OnAck(0, 0, 100)
	before := tm.RTTInfo()

	tm.OnAck(0, 0, 500) // should be ignored: ReceiveTime already set
	after := tm.RTTInfo()

	if before != after {
		t.Errorf("expected RTT info unchanged by duplicate ack, before=%+v after=%+v", before, after)
	}
}

func TestTimersClampsResendTimeout(t *testing.T) {
	tm := NewTimers(4, 64, 200)
	tm.RecordSend(0, 0)
	tm.OnAck(0, 0, 1) // a 1ms sample raises the variance term; the timeout (108) stays >= MinimumResendTime
	if got := tm.CurrentResendTime(); got < 64 {
		t.Errorf("expected resend time clamped to >= 64, got %d", got)
	}

	tm2 := NewTimers(4, 64, 200)
	tm2.RecordSend(0, 0)
	tm2.OnAck(0, 0, 100000) // huge RTT should clamp down to MaximumResendTime
	if got := tm2.CurrentResendTime(); got > 200 {
		t.Errorf("expected resend time clamped to <= 200, got %d", got)
	}
}

// P5 — RTT convergence: constant true RTT converges to within 1ms
// inside 20 round trips.
func TestTimersRTTConvergence(t *testing.T) {
	const trueRTT = 80
	tm := NewTimers(8, 64, 200)

	now := int64(0)
	for round := 0; round < 20; round++ {
		seq := round % 8
		tm.RecordSend(0, now)
		_ = seq
		now += trueRTT
		tm.OnAck(0, 0, now)
		tm.RecordSend(0, now) // reuse seq 0 each round; local timer slot re-armed
		// Reset ReceiveTime by re-recording send (simulates next packet using
		// the same modular slot once its ack round completes).
	}

	info := tm.RTTInfo()
	if diff := info.SmoothedRtt - trueRTT; diff > 1 || diff < -1 {
		t.Errorf("expected SmoothedRtt within 1ms of %d after 20 rounds, got %f", trueRTT, info.SmoothedRtt)
	}
}

func TestProcessingTimeForUnseenSeqIsZero(t *testing.T) {
	tm := NewTimers(4, 64, 200)
	if got := tm.ProcessingTimeFor(5, 1000); got != 0 {
		t.Errorf("expected 0 processing time for unseen seq, got %d", got)
	}
}

func TestProcessingTimeForClampsToUint16Range(t *testing.T) {
	tm := NewTimers(4, 64, 200)
	tm.RecordReceive(1, 0)
	if got := tm.ProcessingTimeFor(1, 1_000_000); got != 65535 {
		t.Errorf("expected processing time clipped to 65535, got %d", got)
	}
}
