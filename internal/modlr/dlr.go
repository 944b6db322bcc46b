// Package modlr implements MO/DLR Reassembly (spec §4.6): parsing
// delivery-receipt text out of deliver_sm bodies and reassembling
// multipart mobile-originated messages from SAR/UDH segments.
package modlr

import "regexp"

// DeliveryReceipt is the parsed form of a delivery-receipt deliver_sm
// body (spec §4.6 "DLR text parsing").
type DeliveryReceipt struct {
	ID       string
	Sub      string
	Dlvrd    string
	SDate    string
	DDate    string
	Stat     string
	Err      string
	Text     string
}

var (
	idRe    = regexp.MustCompile(`id:(\S*)`)
	subRe   = regexp.MustCompile(`sub:(\d*)`)
	dlvrdRe = regexp.MustCompile(`dlvrd:(\d*)`)
	sdateRe = regexp.MustCompile(`submit date:(\d*)`)
	ddateRe = regexp.MustCompile(`done date:(\d*)`)
	statRe  = regexp.MustCompile(`stat:(\S*)`)
	errRe   = regexp.MustCompile(`err:(\S*)`)
	textRe  = regexp.MustCompile(`text:(.*)`)
)

const notDetermined = "ND"

// ParseDeliveryReceipt parses sm against the field-specific regexes from
// spec §4.6. Unlike the codec's strict, order-dependent parser, only id
// and stat are mandatory here; every other field defaults to "ND" when
// absent, and fields may appear in any order or be missing outright. A
// missing id or stat reports ok=false so the caller drops the event with
// a warning (spec §4.6 "Missing id or stat → drop with warning").
func ParseDeliveryReceipt(sm string) (*DeliveryReceipt, bool) {
	id := firstMatch(idRe, sm)
	stat := firstMatch(statRe, sm)
	if id == "" || stat == "" {
		return nil, false
	}
	return &DeliveryReceipt{
		ID:    id,
		Sub:   matchOrND(subRe, sm),
		Dlvrd: matchOrND(dlvrdRe, sm),
		SDate: matchOrND(sdateRe, sm),
		DDate: matchOrND(ddateRe, sm),
		Stat:  stat,
		Err:   matchOrND(errRe, sm),
		Text:  matchOrEmpty(textRe, sm),
	}, true
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func matchOrND(re *regexp.Regexp, s string) string {
	if v := firstMatch(re, s); v != "" {
		return v
	}
	return notDetermined
}

func matchOrEmpty(re *regexp.Regexp, s string) string {
	return firstMatch(re, s)
}
