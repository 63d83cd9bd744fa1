// Command usbtmc-probe opens a single USBTMC instrument by VID/PID,
// sends a SCPI query, and prints whatever comes back. It is the
// minimal smoke test for a new instrument before adding it to
// usbtmcd.yml.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/gousb"

	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

func main() {
	vid := flag.Uint("vid", 0x1313, "USB vendor ID, e.g. 0x1313 for Thorlabs")
	pid := flag.Uint("pid", 0x804a, "USB product ID")
	cmd := flag.String("cmd", "*IDN?", "SCPI command to send before reading the reply")
	flag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(*vid), gousb.ID(*pid))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	if dev == nil {
		log.Fatalf("no device found for VID=%#04x PID=%#04x", *vid, *pid)
	}
	defer dev.Close()

	sess, err := usbtmc.Open(dev)
	if err != nil {
		log.Fatalf("claim USBTMC interface: %v", err)
	}
	defer sess.Close()

	mfr, _ := dev.Manufacturer()
	prod, _ := dev.Product()
	serial, _ := dev.SerialNumber()
	fmt.Printf("attached minor %d (%s, %s, %s)\n", sess.Minor(), mfr, prod, serial)

	query := *cmd + "\n"
	if _, err := sess.Write([]byte(query)); err != nil {
		log.Fatalf("write: %v", err)
	}

	buf := make([]byte, 256)
	n, err := sess.Read(buf)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	fmt.Println(string(buf[:n]))
}
