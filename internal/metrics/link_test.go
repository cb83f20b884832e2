package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLinkCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	link, err := NewLink(reg, "collector")
	if err != nil {
		t.Fatalf("NewLink returned error: %v", err)
	}

	link.ObserveFrame(3, 120)
	link.ObserveFrame(2, 80)
	link.ObserveFailure(ReasonEncode)
	link.SetPending(7)
	link.SetConnected(true)

	if got := testutil.ToFloat64(link.frames); got != 2 {
		t.Fatalf("frames=%v, want 2", got)
	}
	if got := testutil.ToFloat64(link.entries); got != 5 {
		t.Fatalf("entries=%v, want 5", got)
	}
	if got := testutil.ToFloat64(link.bytes); got != 200 {
		t.Fatalf("bytes=%v, want 200", got)
	}
	if got := testutil.ToFloat64(link.failures.WithLabelValues(ReasonEncode)); got != 1 {
		t.Fatalf("encode failures=%v, want 1", got)
	}
	if got := testutil.ToFloat64(link.sessions); got != 1 {
		t.Fatalf("sessions=%v, want 1", got)
	}

	expected := `
# HELP phoenixrec_link_pending_entries Entries waiting to be sent.
# TYPE phoenixrec_link_pending_entries gauge
phoenixrec_link_pending_entries{role="collector"} 7
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "phoenixrec_link_pending_entries"); err != nil {
		t.Fatalf("unexpected pending gauge: %v", err)
	}

	link.SetConnected(false)
	if got := testutil.ToFloat64(link.connected); got != 0 {
		t.Fatalf("connected=%v, want 0", got)
	}
}

func TestLinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := NewLink(reg, "producer"); err != nil {
		t.Fatalf("first NewLink returned error: %v", err)
	}
	if _, err := NewLink(reg, "producer"); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilLinkIsSafe(t *testing.T) {
	t.Parallel()

	var link *Link
	link.ObserveFrame(1, 1)
	link.ObserveFailure(ReasonTransport)
	link.SetPending(1)
	link.SetConnected(true)
}
