package codec

import "testing"

func TestParseApplication(t *testing.T) {
	tests := []struct {
		in     string
		want   Application
		wantOK bool
	}{
		{"voip", ApplicationVoIP, true},
		{"VoIP", ApplicationVoIP, true},
		{"audio", ApplicationAudio, true},
		{" lowdelay ", ApplicationLowDelay, true},
		{"", ApplicationAudio, false},
		{"music", ApplicationAudio, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseApplication(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ParseApplication(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestApplication_StringRoundTrip(t *testing.T) {
	for _, app := range []Application{ApplicationAudio, ApplicationVoIP, ApplicationLowDelay} {
		got, ok := ParseApplication(app.String())
		if !ok || got != app {
			t.Errorf("ParseApplication(%q) = (%v, %v), want (%v, true)", app.String(), got, ok, app)
		}
	}
}
