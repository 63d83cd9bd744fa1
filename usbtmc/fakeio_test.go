package usbtmc

import "time"

// fakeIO is an in-memory endpointIO test double. It records every
// bulkOut frame it is handed and serves bulkIn reads from a queue of
// canned responses, so the message engine and control procedures can
// be exercised without a real USB stack.
type fakeIO struct {
	outFrames [][]byte
	inQueue   [][]byte

	bulkOutErr error
	bulkInErr  error

	controlResponses [][]byte
	controlErr       error
	controlCalls     []fakeControlCall

	clearHaltCalls []byte
	resetCalls     int
}

type fakeControlCall struct {
	reqType, req byte
	value, index uint16
}

func (f *fakeIO) bulkOut(ep byte, p []byte, timeout time.Duration) (int, error) {
	if f.bulkOutErr != nil {
		return 0, f.bulkOutErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	f.outFrames = append(f.outFrames, cp)
	return len(p), nil
}

func (f *fakeIO) bulkIn(ep byte, p []byte, timeout time.Duration) (int, error) {
	if f.bulkInErr != nil {
		return 0, f.bulkInErr
	}
	if len(f.inQueue) == 0 {
		return 0, nil
	}
	next := f.inQueue[0]
	f.inQueue = f.inQueue[1:]
	n := copy(p, next)
	return n, nil
}

func (f *fakeIO) control(reqType, req byte, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	f.controlCalls = append(f.controlCalls, fakeControlCall{reqType, req, value, index})
	if f.controlErr != nil {
		return 0, f.controlErr
	}
	if len(f.controlResponses) == 0 {
		return 0, nil
	}
	next := f.controlResponses[0]
	f.controlResponses = f.controlResponses[1:]
	n := copy(data, next)
	return n, nil
}

func (f *fakeIO) clearHalt(ep byte) error {
	f.clearHaltCalls = append(f.clearHaltCalls, ep)
	return nil
}

func (f *fakeIO) resetConfiguration() error {
	f.resetCalls++
	return nil
}

func (f *fakeIO) manufacturer() string { return "Fake Instruments" }
func (f *fakeIO) product() string      { return "FI-1000" }
func (f *fakeIO) serialNumber() string { return "SN0001" }

// newTestSession builds a Session wired to io without going through
// Open/gousb, for white-box exercise of the message engine and control
// procedures.
func newTestSession(io endpointIO) *Session {
	return &Session{
		io:              io,
		bulkInAddr:      0x81,
		bulkOutAddr:     0x02,
		bulkInMaxPacket: 64,
		tags:            newTagState(),
		timeout:         time.Second,
		termChar:        '\n',
		readMode:        ReadModeFread,
		ioBuffer:        make([]byte, ioBufferSize),
		mfr:             io.manufacturer(),
		prod:            io.product(),
		serial:          io.serialNumber(),
	}
}

// inFrame builds a synthetic DEV_DEP_MSG_IN bulk-in response: a 12
// byte header reporting nCharacters=len(payload) followed by payload.
// decodeIn never inspects the MsgID byte, so encodeOut's framing
// suffices to produce one.
func inFrame(tag byte, payload []byte, eom bool) []byte {
	h := encodeOut(tag, len(payload), eom)
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, h[:]...)
	buf = append(buf, payload...)
	return buf
}
