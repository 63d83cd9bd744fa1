package usbtmc

import "github.com/google/gousb"

// IsInstrument reports whether desc describes a USBTMC device: any of
// its interfaces advertises bInterfaceClass=0xFE, bInterfaceSubClass=0x03.
func IsInstrument(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if byte(alt.Class) == usbtmcClass && byte(alt.SubClass) == usbtmcSubClass {
					return true
				}
			}
		}
	}
	return false
}

// Discover returns every attached USBTMC device found on ctx.  Devices
// that do not match an open caller should Close(); on success the
// caller owns every returned *gousb.Device and is responsible for
// closing each one.
func Discover(ctx *gousb.Context) ([]*gousb.Device, error) {
	return ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsInstrument(desc)
	})
}
