package usbtmc

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"
)

// ioBufferSize is the scratch buffer size used to stage one framed
// message chunk.  2048 is the minimum recommended for USBTMC hosts.
const ioBufferSize = 2048

// DefaultTimeout is the per-call timeout a new Session starts with.
const DefaultTimeout = 5 * time.Second

// usbtmcClass/usbtmcSubClass identify a USBTMC interface.
const (
	usbtmcClass    = 0xfe
	usbtmcSubClass = 0x03
)

// epDirIn is the direction bit of an endpoint address, USB 2.0 section
// 9.6.6.
const epDirIn = 0x80

// Session is the per-instrument context: the bulk endpoint addresses,
// the framing state, and the attribute settings that govern how Write
// and Read behave. Exactly one Session exists per attached instrument;
// it owns its scratch buffer, and calls from several goroutines are
// serialized by mu, so at most one operation is in flight at a time.
type Session struct {
	mu sync.Mutex

	io endpointIO

	bulkInAddr      byte
	bulkOutAddr     byte
	bulkInMaxPacket int

	tags tagState

	timeout time.Duration

	termCharEnabled bool
	termChar        byte

	addNlOnRead   bool
	remNlOnWrite  bool

	autoAbort bool
	readMode  ReadMode
	eofSticky bool

	ioBuffer []byte

	releaseIface func()

	minor  int
	mfr    string
	prod   string
	serial string
}

// Open claims dev's default interface, resolves its bulk endpoints, and
// returns a ready Session. It registers the session in the
// process-wide registry under a free minor number. If either a BULK IN
// or BULK OUT endpoint is missing, Open fails with a descriptive error
// The returned Session owns the interface claim
// and releases it in Close; dev itself remains the caller's to close.
//
// Claiming the interface is retried with an exponential backoff,
// generalized from comm.Open's reconnect loop — a gousb device that was
// just enumerated sometimes answers "resource busy" for a few
// milliseconds while the kernel driver detaches.
func Open(dev *gousb.Device) (*Session, error) {
	var iface *gousb.Interface
	var release func()

	op := func() error {
		var err error
		iface, release, err = dev.DefaultInterface()
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         250 * time.Millisecond,
		MaxElapsedTime:      time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return nil, newErr(Resource, "Open", err)
	}

	inAddr, outAddr, inMax, found := scanBulkEndpoints(iface)
	if !found {
		release()
		return nil, newErr(Resource, "Open", errNoBulkEndpoints)
	}

	io := newGousbIO(dev, iface)
	s := &Session{
		io:              io,
		bulkInAddr:      inAddr,
		bulkOutAddr:     outAddr,
		bulkInMaxPacket: inMax,
		tags:            newTagState(),
		timeout:         DefaultTimeout,
		termChar:        '\n',
		readMode:        ReadModeFread,
		ioBuffer:        make([]byte, ioBufferSize),
		releaseIface:    release,
		mfr:             io.manufacturer(),
		prod:            io.product(),
		serial:          io.serialNumber(),
	}

	minor, regErr := globalRegistry.register(s)
	if regErr != nil {
		release()
		return nil, regErr
	}
	s.minor = minor

	if debugEnabled() {
		log.Printf("usbtmc: opened session %d in=%#x out=%#x maxpkt=%d", minor, inAddr, outAddr, inMax)
	}
	return s, nil
}

var errNoBulkEndpoints = &Error{Kind: Resource, Op: "scanBulkEndpoints",
	Err: errors.New("default interface lacks a BULK IN or a BULK OUT endpoint")}

// scanBulkEndpoints walks iface's current alternate setting and returns
// the lowest-addressed BULK IN and lowest-addressed BULK OUT endpoint,
// rather than assuming endpoint 2 in both directions. iface.Setting.Endpoints
// is a Go map, so its iteration order is unspecified; addresses are
// collected and sorted first so the endpoint picked is deterministic
// across runs even when a device exposes more than one bulk endpoint
// per direction.
func scanBulkEndpoints(iface *gousb.Interface) (inAddr, outAddr byte, inMaxPacket int, ok bool) {
	addrs := make([]gousb.EndpointAddress, 0, len(iface.Setting.Endpoints))
	for addr := range iface.Setting.Endpoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var haveIn, haveOut bool
	for _, addr := range addrs {
		desc := iface.Setting.Endpoints[addr]
		if desc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		a := byte(addr)
		if a&epDirIn != 0 {
			if !haveIn {
				inAddr = a
				inMaxPacket = desc.MaxPacketSize
				haveIn = true
			}
		} else {
			if !haveOut {
				outAddr = a
				haveOut = true
			}
		}
	}
	return inAddr, outAddr, inMaxPacket, haveIn && haveOut
}

// Close releases the claimed interface, the session's registry slot,
// and its scratch buffer. It does not close the underlying device; the
// caller owns that, the same division of responsibility as
// comm.RemoteDevice.Close vs. the net.Conn it wraps.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	globalRegistry.unregister(s.minor)
	if s.releaseIface != nil {
		s.releaseIface()
	}
	s.ioBuffer = nil
	return nil
}

// Minor returns the registry minor number assigned to this session.
func (s *Session) Minor() int { return s.minor }

func msToDuration(ms int32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
