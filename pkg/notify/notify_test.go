package notify

import "testing"

func TestUrgencyValues(t *testing.T) {
	// Verify urgency constants match D-Bus spec
	if UrgencyLow != 0 {
		t.Errorf("UrgencyLow = %d, want 0", UrgencyLow)
	}
	if UrgencyNormal != 1 {
		t.Errorf("UrgencyNormal = %d, want 1", UrgencyNormal)
	}
	if UrgencyCritical != 2 {
		t.Errorf("UrgencyCritical = %d, want 2", UrgencyCritical)
	}
}

func TestFlattenActions(t *testing.T) {
	got := flattenActions([]Action{{"suppress", "Suppress Future"}, {"dismiss", "Dismiss"}})
	want := []string{"suppress", "Suppress Future", "dismiss", "Dismiss"}
	if len(got) != len(want) {
		t.Fatalf("flattenActions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flattenActions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := flattenActions(nil); got == nil || len(got) != 0 {
		t.Errorf("flattenActions(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestStubNotifier(t *testing.T) {
	var n Notifier = &stubNotifier{}
	id, err := n.Notify(Notification{Title: "x"})
	if id != 0 || err != nil {
		t.Errorf("Notify() = %d, %v", id, err)
	}
	if err := n.Close(1); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
