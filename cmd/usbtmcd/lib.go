package main

import (
	"log"

	"github.com/google/gousb"

	"github.com/nasa-jpl/usbtmcd/config"
	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

// attachAll opens one Session per configured instrument and applies
// DefaultTimeoutMs to each. A VID/PID pair that matches no attached
// device is logged and skipped rather than treated as fatal, since a
// fleet of instruments commonly has some unplugged at any given time.
func attachAll(ctx *gousb.Context, insts []config.InstrumentSetup, defaultTimeoutMs int32) map[int]*usbtmc.Session {
	sessions := make(map[int]*usbtmc.Session)
	for _, inst := range insts {
		dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(inst.VID), gousb.ID(inst.PID))
		if err != nil {
			log.Printf("usbtmcd: could not open VID=%#04x PID=%#04x: %v", inst.VID, inst.PID, err)
			continue
		}
		if dev == nil {
			log.Printf("usbtmcd: no device found for VID=%#04x PID=%#04x", inst.VID, inst.PID)
			continue
		}
		sess, err := usbtmc.Open(dev)
		if err != nil {
			log.Printf("usbtmcd: could not claim USBTMC interface on VID=%#04x PID=%#04x: %v", inst.VID, inst.PID, err)
			dev.Close()
			continue
		}
		if err := sess.SetAttribute(usbtmc.AttrTimeout, defaultTimeoutMs); err != nil {
			log.Printf("usbtmcd: could not set default timeout on minor %d: %v", sess.Minor(), err)
		}
		sessions[sess.Minor()] = sess
		log.Printf("usbtmcd: attached minor %d (VID=%#04x PID=%#04x) at %s", sess.Minor(), inst.VID, inst.PID, inst.URL)
	}
	return sessions
}
