package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aetherflow/quantumcore/internal/quantum/reliability"
)

func TestObserveAccumulatesCounterDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	prev := reliability.Statistics{}
	cur := reliability.Statistics{PacketsSent: 5, PacketsResent: 2}
	m.Observe(prev, cur, reliability.RTTInfo{SmoothedRtt: 80, ResendTimeout: 90})

	mf, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	got := map[string]float64{}
	for _, family := range mf {
		for _, metric := range family.Metric {
			if metric.Counter != nil {
				got[family.GetName()] = metric.Counter.GetValue()
			}
		}
	}

	if got["quantumcore_packets_sent_total"] != 5 {
		t.Errorf("expected packets_sent_total 5, got %v", got["quantumcore_packets_sent_total"])
	}
	if got["quantumcore_packets_resent_total"] != 2 {
		t.Errorf("expected packets_resent_total 2, got %v", got["quantumcore_packets_resent_total"])
	}

	// A second Observe with an unchanged cur snapshot should add nothing more.
	m.Observe(cur, cur, reliability.RTTInfo{})
	mf, _ = reg.Gather()
	for _, family := range mf {
		if family.GetName() == "quantumcore_packets_sent_total" {
			if v := family.Metric[0].Counter.GetValue(); v != 5 {
				t.Errorf("expected packets_sent_total to stay at 5, got %v", v)
			}
		}
	}
}
