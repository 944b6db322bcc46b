// Package gsm7 implements the GSM 03.38 default and extension alphabets and
// the short-message segmentation policy used by the MT pipeline (spec §4.5).
package gsm7

// defaultAlphabet maps a rune to its GSM 03.38 default-table byte.
var defaultAlphabet = map[rune]byte{
	'@': 0x00, '£': 0x01, '$': 0x02, '¥': 0x03, 'è': 0x04, 'é': 0x05, 'ù': 0x06,
	'ì': 0x07, 'ò': 0x08, 'Ç': 0x09, '\n': 0x0A, 'Ø': 0x0B, 'ø': 0x0C, '\r': 0x0D,
	'Å': 0x0E, 'å': 0x0F, 'Δ': 0x10, '_': 0x11, 'Φ': 0x12, 'Γ': 0x13, 'Λ': 0x14,
	'Ω': 0x15, 'Π': 0x16, 'Ψ': 0x17, 'Σ': 0x18, 'Θ': 0x19, 'Ξ': 0x1A,
	'Æ': 0x1C, 'æ': 0x1D, 'ß': 0x1E, 'É': 0x1F,
	' ': 0x20, '!': 0x21, '"': 0x22, '#': 0x23, '¤': 0x24, '%': 0x25, '&': 0x26,
	'\'': 0x27, '(': 0x28, ')': 0x29, '*': 0x2A, '+': 0x2B, ',': 0x2C, '-': 0x2D,
	'.': 0x2E, '/': 0x2F,
	'0': 0x30, '1': 0x31, '2': 0x32, '3': 0x33, '4': 0x34, '5': 0x35, '6': 0x36,
	'7': 0x37, '8': 0x38, '9': 0x39, ':': 0x3A, ';': 0x3B, '<': 0x3C, '=': 0x3D,
	'>': 0x3E, '?': 0x3F,
	'¡': 0x40,
	'A': 0x41, 'B': 0x42, 'C': 0x43, 'D': 0x44, 'E': 0x45, 'F': 0x46, 'G': 0x47,
	'H': 0x48, 'I': 0x49, 'J': 0x4A, 'K': 0x4B, 'L': 0x4C, 'M': 0x4D, 'N': 0x4E,
	'O': 0x4F, 'P': 0x50, 'Q': 0x51, 'R': 0x52, 'S': 0x53, 'T': 0x54, 'U': 0x55,
	'V': 0x56, 'W': 0x57, 'X': 0x58, 'Y': 0x59, 'Z': 0x5A,
	'Ä': 0x5B, 'Ö': 0x5C, 'Ñ': 0x5D, 'Ü': 0x5E, '§': 0x5F,
	'¿': 0x60,
	'a': 0x61, 'b': 0x62, 'c': 0x63, 'd': 0x64, 'e': 0x65, 'f': 0x66, 'g': 0x67,
	'h': 0x68, 'i': 0x69, 'j': 0x6A, 'k': 0x6B, 'l': 0x6C, 'm': 0x6D, 'n': 0x6E,
	'o': 0x6F, 'p': 0x70, 'q': 0x71, 'r': 0x72, 's': 0x73, 't': 0x74, 'u': 0x75,
	'v': 0x76, 'w': 0x77, 'x': 0x78, 'y': 0x79, 'z': 0x7A,
	'ä': 0x7B, 'ö': 0x7C, 'ñ': 0x7D, 'ü': 0x7E, 'à': 0x7F,
}

// extensionAlphabet maps a rune to its GSM 03.38 extension-table byte.
// Encoded as ESC(0x1B) followed by the value below.
var extensionAlphabet = map[rune]byte{
	'\f': 0x0A,
	'^':  0x14,
	'{':  0x28,
	'}':  0x29,
	'\\': 0x2F,
	'[':  0x3C,
	'~':  0x3D,
	']':  0x3E,
	'|':  0x40,
	'€':  0x65,
}

const esc = 0x1B

// Encode transliterates s into the GSM 03.38 default+extension alphabets.
// Characters present in neither table are dropped, matching spec §4.5.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := defaultAlphabet[r]; ok {
			out = append(out, b)
			continue
		}
		if b, ok := extensionAlphabet[r]; ok {
			out = append(out, esc, b)
			continue
		}
		// not representable, dropped
	}
	return out
}

// Segmentation policy table from spec §4.5.
type Policy struct {
	Bits       int
	MaxSM      int
	SlicedMax  int
}

var eightBitCodings = map[int]bool{3: true, 6: true, 7: true, 10: true}
var sixteenBitCodings = map[int]bool{2: true, 4: true, 5: true, 8: true, 9: true, 13: true, 14: true}

// PolicyFor returns the segmentation policy for a data_coding value.
func PolicyFor(dataCoding int) Policy {
	switch {
	case eightBitCodings[dataCoding]:
		return Policy{Bits: 8, MaxSM: 140, SlicedMax: 134}
	case sixteenBitCodings[dataCoding]:
		return Policy{Bits: 16, MaxSM: 70, SlicedMax: 67}
	default:
		return Policy{Bits: 7, MaxSM: 160, SlicedMax: 153}
	}
}

// SMLength returns the logical short-message length used by the
// segmentation decision: bytes for 7/8-bit, UTF-16 code units for 16-bit.
func (p Policy) SMLength(content []byte) int {
	if p.Bits == 16 {
		return len(content) / 2
	}
	return len(content)
}

// MaxParts bounds how many segments a single long message may be split
// into, per spec §4.5 ("long_content_max_parts=5").
const MaxParts = 5

// NumParts computes the number of PDUs a message of smLength logical units
// must be split into under policy p, capped at MaxParts: content beyond
// MaxParts segments is truncated to the first MaxParts, not rejected
// (spec §4.5 "num_parts = min(ceil(sm_length/sliced_max), 5)").
func NumParts(p Policy, smLength int) int {
	if smLength <= p.MaxSM {
		return 1
	}
	n := (smLength + p.SlicedMax - 1) / p.SlicedMax
	if n > MaxParts {
		n = MaxParts
	}
	return n
}

// RefCounter produces SMPP concatenation reference numbers 1..255,
// skipping 0, then wrapping (spec P6).
type RefCounter struct {
	n int
}

// NewRefCounter creates a counter that yields 1 on its first Next call.
func NewRefCounter() *RefCounter {
	return &RefCounter{n: 0}
}

// Next returns the next reference number in the 1..255 cycle.
func (c *RefCounter) Next() int {
	c.n++
	if c.n > 255 {
		c.n = 1
	}
	return c.n
}

// UDHPrefix builds the 6-byte concatenated-SMS UDH header: IEI=0x00,
// IEDL=3, <ref><total><seq> (spec I3, P10).
func UDHPrefix(ref, total, seq int) []byte {
	return []byte{0x05, 0x00, 0x03, byte(ref), byte(total), byte(seq)}
}

// Chunk splits content into consecutive windows of sliceUnits logical
// units (bytes for 7/8-bit, 2-byte units for 16-bit); only the last window
// may be shorter. At most n windows are returned: content past the n-th
// window is dropped.
func Chunk(content []byte, bits int, sliceUnits int, n int) [][]byte {
	unitSize := 1
	if bits == 16 {
		unitSize = 2
	}
	sliceBytes := sliceUnits * unitSize
	chunks := make([][]byte, 0, n)
	for i := 0; i < len(content) && len(chunks) < n; i += sliceBytes {
		end := i + sliceBytes
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[i:end])
	}
	return chunks
}
