package usbtmc

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// bRequest values for the class-specific control requests, USBTMC 1.0
// section 4.2.1 / Table 15.
const (
	reqInitiateAbortBulkOut    = 0x01
	reqCheckAbortBulkOutStatus = 0x02
	reqInitiateAbortBulkIn     = 0x03
	reqCheckAbortBulkInStatus  = 0x04
	reqInitiateClear           = 0x05
	reqCheckClearStatus        = 0x06
	reqGetCapabilities         = 0x07
	reqIndicatorPulse          = 0x40
)

// Status byte values, USBTMC 1.0 Table 16.
const (
	statusSuccess = 0x01
	statusPending = 0x02
	statusFailed  = 0x81
)

// maxReadsToClear bounds the CHECK_*_STATUS polling loops and the IN
// endpoint drain loops below.
const maxReadsToClear = 10

// pollInterval paces the CHECK_*_STATUS polling loops so a slow
// instrument isn't hammered with back-to-back control transfers while
// it works through a PENDING abort or clear.
const pollInterval = 20 * time.Millisecond

func newPollLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(pollInterval), 1)
}

func waitPoll(l *rate.Limiter) {
	_ = l.Wait(context.Background())
}

// Capabilities is the four-byte record returned by GET_CAPABILITIES:
// interface capabilities, device capabilities, USB488 interface
// capabilities and USB488 device capabilities, taken verbatim from the
// device response at offsets 4, 5, 14 and 15.
type Capabilities struct {
	InterfaceCaps       byte
	DeviceCaps          byte
	USB488InterfaceCaps byte
	USB488DeviceCaps    byte
}

// AbortBulkOut runs the ABORT_BULK_OUT procedure (USBTMC 1.0 section
// 4.2.1.2) against the most recently issued OUT bTag.
func (s *Session) AbortBulkOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortBulkOutLocked()
}

func (s *Session) abortBulkOutLocked() error {
	buf := make([]byte, 8)
	n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipEP, reqInitiateAbortBulkOut,
		uint16(s.tags.lastOut), uint16(s.bulkOutAddr), buf[:2], s.timeout)
	if err != nil {
		return newErr(Transport, "AbortBulkOut", err)
	}
	if n < 1 || buf[0] != statusSuccess {
		return newErr(Protocol, "AbortBulkOut", nil)
	}

	limiter := newPollLimiter()
	succeeded := false
	for i := 0; i < maxReadsToClear && !succeeded; i++ {
		waitPoll(limiter)
		n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipEP, reqCheckAbortBulkOutStatus,
			0, uint16(s.bulkOutAddr), buf, s.timeout)
		if err != nil {
			return newErr(Transport, "AbortBulkOut", err)
		}
		if n < 1 {
			return newErr(Protocol, "AbortBulkOut", nil)
		}
		switch buf[0] {
		case statusSuccess:
			succeeded = true
		case statusPending:
			continue
		default:
			return newErr(Protocol, "AbortBulkOut", nil)
		}
	}
	if !succeeded {
		return newErr(Protocol, "AbortBulkOut", errAbortTimedOut)
	}
	return s.io.clearHalt(s.bulkOutAddr)
}

// AbortBulkIn runs the ABORT_BULK_IN procedure (USBTMC 1.0 section
// 4.2.1.4) against the most recently observed IN bTag.
func (s *Session) AbortBulkIn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortBulkInLocked()
}

func (s *Session) abortBulkInLocked() error {
	buf := make([]byte, 8)
	n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipEP, reqInitiateAbortBulkIn,
		uint16(s.tags.lastIn), uint16(s.bulkInAddr), buf[:2], s.timeout)
	if err != nil {
		return newErr(Transport, "AbortBulkIn", err)
	}
	if n >= 1 && buf[0] == statusFailed {
		// FIFO already empty; nothing to abort.
		return nil
	}
	if n < 1 || buf[0] != statusSuccess {
		return newErr(Protocol, "AbortBulkIn", nil)
	}

	if err := s.drainBulkIn(); err != nil {
		return err
	}

	limiter := newPollLimiter()
	for i := 0; i < maxReadsToClear; i++ {
		waitPoll(limiter)
		n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipEP, reqCheckAbortBulkInStatus,
			0, uint16(s.bulkInAddr), buf, s.timeout)
		if err != nil {
			return newErr(Transport, "AbortBulkIn", err)
		}
		if n < 1 {
			return newErr(Protocol, "AbortBulkIn", nil)
		}
		switch buf[0] {
		case statusSuccess:
			return nil
		case statusPending:
			if buf[1]&0x01 == 1 {
				if err := s.drainBulkIn(); err != nil {
					return err
				}
			}
			continue
		default:
			return newErr(Protocol, "AbortBulkIn", nil)
		}
	}
	return newErr(Protocol, "AbortBulkIn", errAbortTimedOut)
}

// drainBulkIn reads the IN endpoint repeatedly until it yields a short
// packet (actual < bulk_in_max_packet) or the iteration cap is
// reached; used by ABORT_BULK_IN and CLEAR.
func (s *Session) drainBulkIn() error {
	for i := 0; i < maxReadsToClear; i++ {
		actual, err := s.io.bulkIn(s.bulkInAddr, s.ioBuffer[:ioBufferSize], s.timeout)
		if err != nil {
			return newErr(Transport, "drainBulkIn", err)
		}
		if actual < s.bulkInMaxPacket {
			return nil
		}
	}
	return newErr(Protocol, "drainBulkIn", errDrainExceeded)
}

// Clear runs the CLEAR procedure (USBTMC 1.0 section 4.2.1.6), aborting
// any operation in progress on the device and resetting its message
// state.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 8)
	n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipIface, reqInitiateClear, 0, 0, buf[:1], s.timeout)
	if err != nil {
		return newErr(Transport, "Clear", err)
	}
	if n < 1 || buf[0] != statusSuccess {
		return newErr(Protocol, "Clear", nil)
	}

	limiter := newPollLimiter()
	for i := 0; i < maxReadsToClear; i++ {
		waitPoll(limiter)
		n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipIface, reqCheckClearStatus, 0, 0, buf[:2], s.timeout)
		if err != nil {
			return newErr(Transport, "Clear", err)
		}
		if n < 1 {
			return newErr(Protocol, "Clear", nil)
		}
		switch buf[0] {
		case statusSuccess:
			return s.io.clearHalt(s.bulkOutAddr)
		case statusPending:
			if buf[1]&0x01 == 1 {
				if err := s.drainBulkIn(); err != nil {
					return err
				}
			}
			continue
		default:
			return newErr(Protocol, "Clear", nil)
		}
	}
	return newErr(Protocol, "Clear", errAbortTimedOut)
}

// ClearOutHalt issues a standard CLEAR_FEATURE/ENDPOINT_HALT on the
// bulk OUT endpoint.
func (s *Session) ClearOutHalt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.clearHalt(s.bulkOutAddr)
}

// ClearInHalt issues a standard CLEAR_FEATURE/ENDPOINT_HALT on the bulk
// IN endpoint.
func (s *Session) ClearInHalt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.clearHalt(s.bulkInAddr)
}

// GetCapabilities issues GET_CAPABILITIES and returns the four
// capability bytes at offsets 4, 5, 14 and 15 of the 0x18-byte
// response.
func (s *Session) GetCapabilities() (Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 0x18)
	n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipIface, reqGetCapabilities, 0, 0, buf, s.timeout)
	if err != nil {
		return Capabilities{}, newErr(Transport, "GetCapabilities", err)
	}
	if n < 1 || buf[0] != statusSuccess {
		return Capabilities{}, newErr(Protocol, "GetCapabilities", nil)
	}
	if n < 0x10 {
		return Capabilities{}, newErr(Protocol, "GetCapabilities", nil)
	}
	return Capabilities{
		InterfaceCaps:       buf[4],
		DeviceCaps:          buf[5],
		USB488InterfaceCaps: buf[14],
		USB488DeviceCaps:    buf[15],
	}, nil
}

// IndicatorPulse requests the instrument blink its status indicator.
func (s *Session) IndicatorPulse() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 1)
	n, err := s.io.control(reqDirIn|reqTypeClass|reqRecipIface, reqIndicatorPulse, 0, 0, buf, s.timeout)
	if err != nil {
		return newErr(Transport, "IndicatorPulse", err)
	}
	if n < 1 || buf[0] != statusSuccess {
		return newErr(Protocol, "IndicatorPulse", nil)
	}
	return nil
}

// ResetConfiguration invokes the host USB stack's reset-configuration
// primitive on the underlying device.
func (s *Session) ResetConfiguration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.resetConfiguration()
}

var errAbortTimedOut = errors.New("usbtmc: abort/clear polling exceeded MAX_READS_TO_CLEAR_BULK_IN")
var errDrainExceeded = errors.New("usbtmc: IN endpoint drain exceeded MAX_READS_TO_CLEAR_BULK_IN")
