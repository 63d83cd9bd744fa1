package usbtmc

import (
	"bytes"
	"testing"
)

func TestWriteZeroBytesEmitsOneEOMPacket(t *testing.T) {
	io := &fakeIO{}
	s := newTestSession(io)

	n, err := s.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
	if len(io.outFrames) != 1 {
		t.Fatalf("frames emitted = %d, want 1", len(io.outFrames))
	}
	frame := io.outFrames[0]
	if len(frame) != headerLen {
		t.Fatalf("frame length = %d, want %d (header only)", len(frame), headerLen)
	}
	if frame[8] != 1 {
		t.Fatalf("EOM = %d, want 1", frame[8])
	}
}

func TestWriteExactlyCapacityBytesEmitsOnePacketNoPadding(t *testing.T) {
	io := &fakeIO{}
	s := newTestSession(io)

	payload := bytes.Repeat([]byte{'x'}, ioBufferSize-headerLen)
	n, err := s.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("n = %d, want %d", n, len(payload))
	}
	if len(io.outFrames) != 1 {
		t.Fatalf("frames emitted = %d, want 1", len(io.outFrames))
	}
	if len(io.outFrames[0]) != headerLen+len(payload) {
		t.Fatalf("frame length = %d, want %d (no padding)", len(io.outFrames[0]), headerLen+len(payload))
	}
	if io.outFrames[0][8] != 1 {
		t.Fatalf("EOM on sole chunk = %d, want 1", io.outFrames[0][8])
	}
}

func TestWriteOneByteOverCapacitySplitsIntoTwoChunks(t *testing.T) {
	io := &fakeIO{}
	s := newTestSession(io)

	capacity := ioBufferSize - headerLen
	payload := bytes.Repeat([]byte{'y'}, capacity+1)
	n, err := s.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("n = %d, want %d", n, len(payload))
	}
	if len(io.outFrames) != 2 {
		t.Fatalf("frames emitted = %d, want 2", len(io.outFrames))
	}

	first, second := io.outFrames[0], io.outFrames[1]
	if first[8] != 0 {
		t.Fatalf("first chunk EOM = %d, want 0", first[8])
	}
	if len(first) != headerLen+capacity {
		t.Fatalf("first chunk length = %d, want %d", len(first), headerLen+capacity)
	}
	if second[8] != 1 {
		t.Fatalf("second chunk EOM = %d, want 1", second[8])
	}
	wantSecondLen := headerLen + 1 + padLen4(headerLen+1)
	if len(second) != wantSecondLen {
		t.Fatalf("second chunk length = %d, want %d (1 byte payload + 3 pad)", len(second), wantSecondLen)
	}
}

func TestWriteTrimsTrailingNewlineWhenConfigured(t *testing.T) {
	io := &fakeIO{}
	s := newTestSession(io)
	s.remNlOnWrite = true

	n, err := s.Write([]byte("ABC\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4 (caller's buffer length, trim is wire-only)", n)
	}
	frame := io.outFrames[0]
	payload := frame[headerLen : headerLen+3]
	if string(payload) != "ABC" {
		t.Fatalf("wire payload = %q, want %q", payload, "ABC")
	}
	if frame[8] != 1 {
		t.Fatalf("EOM = %d, want 1", frame[8])
	}
}

func TestWriteTagsAreSequentialAcrossChunks(t *testing.T) {
	io := &fakeIO{}
	s := newTestSession(io)

	capacity := ioBufferSize - headerLen
	payload := bytes.Repeat([]byte{'z'}, capacity+1)
	if _, err := s.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	firstTag, secondTag := io.outFrames[0][1], io.outFrames[1][1]
	if secondTag != firstTag+1 {
		t.Fatalf("second chunk tag = %d, want %d", secondTag, firstTag+1)
	}
}

func TestReadShortPacketEndsLoopAndSetsEOF(t *testing.T) {
	io := &fakeIO{inQueue: [][]byte{inFrame(1, []byte("1.23"), true)}}
	s := newTestSession(io)

	buf := make([]byte, 128)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4 || string(buf[:n]) != "1.23" {
		t.Fatalf("Read returned %q (n=%d), want %q", buf[:n], n, "1.23")
	}

	// FREAD mode: the following read must signal EOF once.
	n2, err := s.Read(buf)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("second Read = %d, want 0 (sticky EOF under FREAD)", n2)
	}
}

func TestReadAppendsNewlineWhenConfigured(t *testing.T) {
	io := &fakeIO{inQueue: [][]byte{inFrame(1, []byte("1.23"), true)}}
	s := newTestSession(io)
	s.addNlOnRead = true

	buf := make([]byte, 8)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
	if buf[4] != '\n' {
		t.Fatalf("last byte = %q, want newline", buf[4])
	}
}

func TestReadRequestHeaderCarriesTermChar(t *testing.T) {
	io := &fakeIO{inQueue: [][]byte{inFrame(1, []byte("ok"), true)}}
	s := newTestSession(io)
	s.termCharEnabled = true
	s.termChar = '\r'

	buf := make([]byte, 16)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(io.outFrames) != 1 {
		t.Fatalf("OUT frames = %d, want 1 (the REQUEST_DEV_DEP_MSG_IN)", len(io.outFrames))
	}
	req := io.outFrames[0]
	if req[0] != msgRequestDevDepMsgIn {
		t.Fatalf("MsgID = %#x, want %#x", req[0], msgRequestDevDepMsgIn)
	}
	if req[8]&0x02 == 0 {
		t.Fatalf("term-char-enabled bit not set in request header")
	}
	if req[9] != '\r' {
		t.Fatalf("TermChar = %q, want '\\r'", req[9])
	}
}

func TestWriteThenReadTagsStrictlyIncrease(t *testing.T) {
	io := &fakeIO{inQueue: [][]byte{inFrame(2, []byte("x"), true)}}
	s := newTestSession(io)

	if _, err := s.Write([]byte("*IDN?\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	writeTag := io.outFrames[0][1]

	buf := make([]byte, 16)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	readReqTag := io.outFrames[1][1]

	if readReqTag <= writeTag {
		t.Fatalf("read request tag %d did not exceed write tag %d", readReqTag, writeTag)
	}
}

func TestWriteFailureTriggersAutoAbort(t *testing.T) {
	io := &fakeIO{bulkOutErr: errFakeTimeout}
	s := newTestSession(io)
	s.autoAbort = true
	io.controlResponses = [][]byte{{statusSuccess}, {statusSuccess}}

	_, err := s.Write([]byte("cmd\n"))
	if err == nil {
		t.Fatalf("Write: expected error")
	}
	if !IsKind(err, Transport) {
		t.Fatalf("error kind = %v, want Transport", err)
	}
	if len(io.controlCalls) == 0 {
		t.Fatalf("auto_abort did not issue any control request after the failed write")
	}
	if io.controlCalls[0].req != reqInitiateAbortBulkOut {
		t.Fatalf("first control request = %#x, want INITIATE_ABORT_BULK_OUT", io.controlCalls[0].req)
	}
}

var errFakeTimeout = fakeTransportError("simulated bulk transfer timeout")

type fakeTransportError string

func (e fakeTransportError) Error() string { return string(e) }
