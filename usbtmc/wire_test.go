package usbtmc

import "testing"

func TestEncodeOutHeaderLayout(t *testing.T) {
	h := encodeOut(5, 6, true)
	if h[0] != msgDevDepMsgOut {
		t.Fatalf("MsgID = %#x, want %#x", h[0], msgDevDepMsgOut)
	}
	if h[1] != 5 {
		t.Fatalf("bTag = %d, want 5", h[1])
	}
	if h[2] != invTag(5) {
		t.Fatalf("bTagInverse = %#x, want %#x", h[2], invTag(5))
	}
	if h[8] != 1 {
		t.Fatalf("EOM bit = %d, want 1", h[8])
	}
}

func TestEncodeOutEOMClearOnNonFinalChunk(t *testing.T) {
	h := encodeOut(1, 2048, false)
	if h[8] != 0 {
		t.Fatalf("EOM bit = %d, want 0 on a non-final chunk", h[8])
	}
}

func TestBTagInverseInvariant(t *testing.T) {
	for tag := 0; tag < 256; tag++ {
		h := encodeOut(byte(tag), 0, true)
		if h[2] != ^h[1] {
			t.Fatalf("tag %d: bTagInverse %#x is not the complement of bTag %#x", tag, h[2], h[1])
		}
	}
}

func TestEncodeRequestInTermChar(t *testing.T) {
	h := encodeRequestIn(9, 100, true, 0x0A)
	if h[0] != msgRequestDevDepMsgIn {
		t.Fatalf("MsgID = %#x, want %#x", h[0], msgRequestDevDepMsgIn)
	}
	if h[8]&0x02 == 0 {
		t.Fatalf("term-char-enabled bit not set")
	}
	if h[9] != 0x0A {
		t.Fatalf("TermChar = %#x, want 0x0A", h[9])
	}

	h2 := encodeRequestIn(9, 100, false, 0x0A)
	if h2[8]&0x02 != 0 {
		t.Fatalf("term-char-enabled bit set when termEnabled=false")
	}
}

func TestDecodeInRoundTrip(t *testing.T) {
	buf := make([]byte, headerLen+4)
	h := encodeOut(7, 4, true)
	copy(buf, h[:])
	d := decodeIn(buf)
	if d.tag != 7 {
		t.Fatalf("tag = %d, want 7", d.tag)
	}
	if d.nCharacters != 4 {
		t.Fatalf("nCharacters = %d, want 4", d.nCharacters)
	}
	if !d.eom {
		t.Fatalf("eom = false, want true")
	}
}

func TestPadLen4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 13: 3, 2048: 0, 2049: 3}
	for n, want := range cases {
		if got := padLen4(n); got != want {
			t.Errorf("padLen4(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestOutPacketTotalLengthIsAligned(t *testing.T) {
	for payload := 0; payload < 20; payload++ {
		total := headerLen + payload + padLen4(headerLen+payload)
		if total%4 != 0 {
			t.Fatalf("payload %d: total length %d is not 4-byte aligned", payload, total)
		}
	}
}
