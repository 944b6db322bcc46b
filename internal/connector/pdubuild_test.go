package connector

import (
	"testing"

	"github.com/relaysms/smppgw/internal/gwmodel"
)

func TestBuildSubmitSmPlain(t *testing.T) {
	tmpl := gwmodel.PDUTemplate{
		SourceAddr:      "1001",
		DestinationAddr: "2002",
		ShortMessage:    "hello",
		EsmClass:        0x03,
	}
	sm, err := buildSubmitSm(tmpl)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sm.ShortMessage != "hello" {
		t.Errorf("short_message = %q", sm.ShortMessage)
	}
	if sm.SourceAddr != "1001" || sm.DestinationAddr != "2002" {
		t.Errorf("addrs: %+v", sm)
	}
}

func TestBuildSubmitSmHexAndUDH(t *testing.T) {
	tmpl := gwmodel.PDUTemplate{
		ShortMessageHex: "0500030102014865",
		MoreMessages:    true,
	}
	sm, err := buildSubmitSm(tmpl)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sm.ShortMessage != string([]byte{0x05, 0x00, 0x03, 0x01, 0x02, 0x01, 0x48, 0x65}) {
		t.Errorf("unexpected decoded short message: %x", sm.ShortMessage)
	}
	if sm.Options == nil {
		t.Fatal("expected more_messages_to_send option to be set")
	}
	v, ok := sm.Options.GetSingle(0x0426)
	if !ok || v != 1 {
		t.Errorf("more_messages_to_send = %v ok=%v", v, ok)
	}
}

func TestBuildSubmitSmInvalidHex(t *testing.T) {
	tmpl := gwmodel.PDUTemplate{ShortMessageHex: "zz"}
	if _, err := buildSubmitSm(tmpl); err == nil {
		t.Fatal("expected error decoding invalid hex")
	}
}
