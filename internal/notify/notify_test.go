package notify

import "testing"

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		kind    string
		want    Notifier
	}{
		{"disabled ignores type", false, "desktop", Nop{}},
		{"desktop", true, "desktop", Desktop{}},
		{"log", true, "log", Log{}},
		{"none", true, "none", Nop{}},
		{"unknown type", true, "carrier-pigeon", Nop{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromConfig(tt.enabled, tt.kind); got != tt.want {
				t.Errorf("FromConfig(%v, %q) = %T, want %T", tt.enabled, tt.kind, got, tt.want)
			}
		})
	}
}

func TestNopDoesNothing(t *testing.T) {
	var n Notifier = Nop{}
	n.CaptureChanged("recording")
	n.Saved("/tmp/x.webm")
	n.Error("boom")
}
