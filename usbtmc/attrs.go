package usbtmc

import "sync/atomic"

// AttrID is the closed enumeration of attribute identifiers the
// control surface exposes for get/set.
type AttrID int

const (
	// AttrAutoAbortOnError selects whether a failing bulk transfer
	// automatically triggers the matching abort procedure.  Values: 0
	// (off), 1 (on).
	AttrAutoAbortOnError AttrID = iota

	// AttrReadMode selects EOF emulation.  Values: ReadModeFread (0),
	// ReadModeRead (1).
	AttrReadMode

	// AttrTimeout is the per-call timeout in milliseconds.
	AttrTimeout

	// AttrTermCharEnabled requests server-side message termination.
	AttrTermCharEnabled

	// AttrTermChar is the termination byte, 0..255.
	AttrTermChar

	// AttrAddNlOnRead appends 0x0A to a short read.
	AttrAddNlOnRead

	// AttrRemNlOnWrite trims a trailing 0x0A before writing.
	AttrRemNlOnWrite

	// AttrNumInstruments is read-only: count of attached sessions.
	AttrNumInstruments

	// AttrMinorNumbers is read-only: registry capacity.
	AttrMinorNumbers

	// AttrSizeIOBuffer is read-only: the IOBUFFER constant.
	AttrSizeIOBuffer

	// AttrDefaultTimeout is read-only: the default timeout in ms.
	AttrDefaultTimeout

	// AttrDebugMode is read-only: whether package tracing is enabled.
	AttrDebugMode

	// AttrVersion is read-only: the driver version, e.g. 110 for 1.1.
	AttrVersion
)

// ReadMode selects the EOF emulation behavior of Session.Read.
type ReadMode int32

const (
	// ReadModeFread: a short read is followed by one zero-length read
	// signaling EOF, the convention buffered stream readers expect.
	ReadModeFread ReadMode = iota
	// ReadModeRead: no sticky EOF signaling.
	ReadModeRead
)

var readOnlyAttrs = map[AttrID]bool{
	AttrNumInstruments: true,
	AttrMinorNumbers:   true,
	AttrSizeIOBuffer:   true,
	AttrDefaultTimeout: true,
	AttrDebugMode:      true,
	AttrVersion:        true,
}

// version is reported verbatim by AttrVersion; 110 means 1.1.
const version = 110

// debug gates the package's internal tracing (set through SetDebug), and
// is what AttrDebugMode reports back.  Library code never calls log.Fatal; only cmd/ binaries
// do.
var debug int32

// SetDebug enables or disables internal tracing.
func SetDebug(on bool) {
	if on {
		atomic.StoreInt32(&debug, 1)
	} else {
		atomic.StoreInt32(&debug, 0)
	}
}

func debugEnabled() bool { return atomic.LoadInt32(&debug) != 0 }

// GetAttribute returns the current value of id for this session, or an
// InvalidArgument error for an unknown id.
func (s *Session) GetAttribute(id AttrID) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch id {
	case AttrAutoAbortOnError:
		return boolToInt(s.autoAbort), nil
	case AttrReadMode:
		return int32(s.readMode), nil
	case AttrTimeout:
		return int32(s.timeout.Milliseconds()), nil
	case AttrTermCharEnabled:
		return boolToInt(s.termCharEnabled), nil
	case AttrTermChar:
		return int32(s.termChar), nil
	case AttrAddNlOnRead:
		return boolToInt(s.addNlOnRead), nil
	case AttrRemNlOnWrite:
		return boolToInt(s.remNlOnWrite), nil
	case AttrNumInstruments:
		return int32(globalRegistry.count()), nil
	case AttrMinorNumbers:
		return int32(registryCapacity), nil
	case AttrSizeIOBuffer:
		return int32(ioBufferSize), nil
	case AttrDefaultTimeout:
		return int32(DefaultTimeout.Milliseconds()), nil
	case AttrDebugMode:
		return boolToInt(debugEnabled()), nil
	case AttrVersion:
		return version, nil
	default:
		return 0, newErr(InvalidArgument, "GetAttribute", nil)
	}
}

// SetAttribute writes id to value, or returns InvalidArgument if id is
// unknown, read-only, or value is out of range for id.
func (s *Session) SetAttribute(id AttrID, value int32) error {
	if readOnlyAttrs[id] {
		return newErr(InvalidArgument, "SetAttribute", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch id {
	case AttrAutoAbortOnError:
		b, err := intToBool(value)
		if err != nil {
			return err
		}
		s.autoAbort = b
	case AttrReadMode:
		switch ReadMode(value) {
		case ReadModeFread, ReadModeRead:
			s.readMode = ReadMode(value)
		default:
			return newErr(InvalidArgument, "SetAttribute", nil)
		}
	case AttrTimeout:
		if value < 0 {
			return newErr(InvalidArgument, "SetAttribute", nil)
		}
		s.timeout = msToDuration(value)
	case AttrTermCharEnabled:
		b, err := intToBool(value)
		if err != nil {
			return err
		}
		s.termCharEnabled = b
	case AttrTermChar:
		if value < 0 || value > 255 {
			return newErr(InvalidArgument, "SetAttribute", nil)
		}
		s.termChar = byte(value)
	case AttrAddNlOnRead:
		b, err := intToBool(value)
		if err != nil {
			return err
		}
		s.addNlOnRead = b
	case AttrRemNlOnWrite:
		b, err := intToBool(value)
		if err != nil {
			return err
		}
		s.remNlOnWrite = b
	default:
		return newErr(InvalidArgument, "SetAttribute", nil)
	}
	return nil
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func intToBool(v int32) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, newErr(InvalidArgument, "intToBool", nil)
	}
}
