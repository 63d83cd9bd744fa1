package usbtmc

import (
	"context"
	"time"

	"github.com/google/gousb"
)

// USB control request type bits, USB 2.0 section 9.3.
const (
	reqDirIn      = 0x80
	reqTypeClass  = 0x20
	reqRecipIface = 0x01
	reqRecipEP    = 0x02

	reqTypeStandard = 0x00
)

// bRequest values for CLEAR_FEATURE, USB 2.0 Table 9-4.
const (
	stdRequestClearFeature = 0x01
	featureEndpointHalt    = 0x00
)

// endpointIO is the narrow synchronous surface every other component in
// this package uses to reach the device.  Apart from Open's interface
// claim and endpoint scan in session.go, nothing outside facade.go talks
// to *gousb.Device directly, which is what makes the control procedures
// and message engine testable against a fake.
type endpointIO interface {
	bulkOut(ep byte, p []byte, timeout time.Duration) (int, error)
	bulkIn(ep byte, p []byte, timeout time.Duration) (int, error)
	control(reqType, req byte, value, index uint16, data []byte, timeout time.Duration) (int, error)
	clearHalt(ep byte) error
	resetConfiguration() error
	manufacturer() string
	product() string
	serialNumber() string
}

// gousbIO is the production endpointIO backed by github.com/google/gousb,
// generalized to scan for the device's bulk endpoints rather than
// assume endpoint 2 in both directions.
type gousbIO struct {
	dev   *gousb.Device
	iface *gousb.Interface

	ins  map[byte]*gousb.InEndpoint
	outs map[byte]*gousb.OutEndpoint
}

func newGousbIO(dev *gousb.Device, iface *gousb.Interface) *gousbIO {
	return &gousbIO{
		dev:   dev,
		iface: iface,
		ins:   make(map[byte]*gousb.InEndpoint),
		outs:  make(map[byte]*gousb.OutEndpoint),
	}
}

func (g *gousbIO) inEndpoint(ep byte) (*gousb.InEndpoint, error) {
	if e, ok := g.ins[ep]; ok {
		return e, nil
	}
	e, err := g.iface.InEndpoint(int(ep & 0x0f))
	if err != nil {
		return nil, err
	}
	g.ins[ep] = e
	return e, nil
}

func (g *gousbIO) outEndpoint(ep byte) (*gousb.OutEndpoint, error) {
	if e, ok := g.outs[ep]; ok {
		return e, nil
	}
	e, err := g.iface.OutEndpoint(int(ep & 0x0f))
	if err != nil {
		return nil, err
	}
	g.outs[ep] = e
	return e, nil
}

func (g *gousbIO) bulkOut(ep byte, p []byte, timeout time.Duration) (int, error) {
	e, err := g.outEndpoint(ep)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.WriteContext(ctx, p)
}

func (g *gousbIO) bulkIn(ep byte, p []byte, timeout time.Duration) (int, error) {
	e, err := g.inEndpoint(ep)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.ReadContext(ctx, p)
}

// control issues a raw control transfer.  reqType here is only the
// direction/type/recipient bits (USB 2.0 section 9.3.1); the data
// direction bit is supplied by the caller via reqType: the class
// requests this driver issues are device-to-host, while clearHalt's
// CLEAR_FEATURE is host-to-device.
func (g *gousbIO) control(reqType, req byte, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	g.dev.ControlTimeout = timeout
	return g.dev.Control(reqType, req, value, index, data)
}

func (g *gousbIO) clearHalt(ep byte) error {
	// host-to-device, standard, recipient=endpoint; USB 2.0 section 9.4.1
	_, err := g.control(reqTypeStandard|reqRecipEP, stdRequestClearFeature, featureEndpointHalt, uint16(ep), nil, time.Second)
	return err
}

func (g *gousbIO) resetConfiguration() error {
	return g.dev.Reset()
}

func (g *gousbIO) manufacturer() string {
	s, err := g.dev.Manufacturer()
	if err != nil {
		return ""
	}
	return s
}

func (g *gousbIO) product() string {
	s, err := g.dev.Product()
	if err != nil {
		return ""
	}
	return s
}

func (g *gousbIO) serialNumber() string {
	s, err := g.dev.SerialNumber()
	if err != nil {
		return ""
	}
	return s
}
