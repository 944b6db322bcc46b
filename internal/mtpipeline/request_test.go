package mtpipeline

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", raw, err)
	}
	return ParseRequest(q)
}

func TestParseRequestMinimalValid(t *testing.T) {
	req, err := mustParse(t, "to=123&username=u&password=p&content=hi")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.To != "123" || req.Content != "hi" || req.Coding != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseRequestMissingTo(t *testing.T) {
	_, err := mustParse(t, "username=u&password=p&content=hi")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestMissingContentOrHex(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestHexContent(t *testing.T) {
	req, err := mustParse(t, "to=1&username=u&password=p&hex-content=48656c6c6f")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.HexContent != "48656c6c6f" {
		t.Fatalf("HexContent = %q", req.HexContent)
	}
}

func TestParseRequestInvalidHexContent(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p&hex-content=zz")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestInvalidCoding(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p&content=hi&coding=99")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestTags(t *testing.T) {
	req, err := mustParse(t, "to=1&username=u&password=p&content=hi&tags=1,2,3")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(req.Tags) != 3 || req.Tags[0] != 1 || req.Tags[2] != 3 {
		t.Fatalf("Tags = %v", req.Tags)
	}
}

func TestParseRequestInvalidTags(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p&content=hi&tags=1,x")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestDLR(t *testing.T) {
	req, err := mustParse(t, "to=1&username=u&password=p&content=hi&dlr=yes&dlr-url=http://x&dlr-level=3&dlr-method=post")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !req.DLR || req.DLRURL != "http://x" || req.DLRLevel != 3 || req.DLRMethod != "POST" {
		t.Fatalf("unexpected dlr fields: %+v", req)
	}
}

func TestParseRequestDLRMissingURL(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p&content=hi&dlr=yes&dlr-level=1&dlr-method=get")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestParseRequestDLRInvalidMethod(t *testing.T) {
	_, err := mustParse(t, "to=1&username=u&password=p&content=hi&dlr=yes&dlr-url=http://x&dlr-level=1&dlr-method=put")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}
