package device

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   Classification
	}{
		{"online", Device{Monitored: true, Power: true}, ClassOnline},
		{"power off", Device{Monitored: true, Power: false}, ClassOffline},
		{"alarm", Device{Monitored: true, Power: true, Alarm: true}, ClassOffline},
		{"unmonitored healthy", Device{Monitored: false, Power: true}, ClassUnmonitored},
		{"unmonitored down", Device{Monitored: false, Alarm: true}, ClassUnmonitored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(&tt.device); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInOutageIgnoresMonitored(t *testing.T) {
	d := Device{Monitored: false, Power: false}
	if !d.InOutage() {
		t.Fatal("expected unmonitored powered-off device to be in outage")
	}
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"Elevators":         "elevator",
		"escalator":         "escalator",
		" Moving_Walkways ": "moving_walkway",
		"s":                 "s",
	}
	for in, want := range cases {
		if got := NormalizeType(in); got != want {
			t.Fatalf("NormalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}
