package safety

import "testing"

func TestMonitor_blocksAfterSuspiciousPatternThreshold(t *testing.T) {
	m := NewMonitor()
	var blocked bool
	for i := 0; i < patternThreshold; i++ {
		_, blocked = m.Observe("userhash", "queryhash", "10.0.0.1", true)
	}
	if !blocked {
		t.Fatal("expected IP to be blocked after repeated suspicious patterns")
	}
	if !m.IsBlocked("10.0.0.1") {
		t.Error("expected IsBlocked to report the blocked IP")
	}
}

func TestMonitor_flagsRepetitiveQueries(t *testing.T) {
	m := NewMonitor()
	var repetitive bool
	for i := 0; i <= anomalyThreshold; i++ {
		repetitive, _ = m.Observe("userhash", "samequery", "10.0.0.2", false)
	}
	if !repetitive {
		t.Error("expected repetitive query detection past the anomaly threshold")
	}
}

func TestMonitor_blockIPDirect(t *testing.T) {
	m := NewMonitor()
	if m.IsBlocked("192.168.1.1") {
		t.Fatal("expected fresh monitor to have no blocks")
	}
	m.BlockIP("192.168.1.1")
	if !m.IsBlocked("192.168.1.1") {
		t.Error("expected IP to be blocked after BlockIP")
	}
}
