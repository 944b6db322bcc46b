package queue

import "testing"

func TestConnectorSubject(t *testing.T) {
	cases := []struct {
		prefix, name, suffix, want string
	}{
		{"", "smsc-1", "", "smppconn_smsc-1"},
		{"app_", "Route A", "", "app_smppconn_RouteA"},
		{"", "smsc1", "_v2", "smppconn_smsc1_v2"},
		{"", "Route/B!", "", "smppconn_Route-B-"},
	}
	for _, c := range cases {
		if got := ConnectorSubject(c.prefix, c.name, c.suffix); got != c.want {
			t.Errorf("ConnectorSubject(%q,%q,%q) = %q, want %q", c.prefix, c.name, c.suffix, got, c.want)
		}
	}
}

func TestDLRSubject(t *testing.T) {
	if got := DLRSubject("app_", "_v2"); got != "app_dlr_v2" {
		t.Errorf("DLRSubject = %q, want app_dlr_v2", got)
	}
	if got := DLRSubject("", ""); got != "dlr" {
		t.Errorf("DLRSubject = %q, want dlr", got)
	}
}

func TestMOSubject(t *testing.T) {
	if got := MOSubject("app_", "_v2"); got != "app_mo_v2" {
		t.Errorf("MOSubject = %q, want app_mo_v2", got)
	}
	if got := MOSubject("", ""); got != "mo" {
		t.Errorf("MOSubject = %q, want mo", got)
	}
}
