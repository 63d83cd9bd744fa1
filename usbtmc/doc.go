/*Package usbtmc implements the USBTMC (USB Test and Measurement Class)
protocol engine: bulk message framing, the chunked read/write loops that
segment a user transfer into bulk packets, the bTag transaction tag
discipline, and the synchronous control-request state machines for
ABORT_BULK_IN, ABORT_BULK_OUT and device CLEAR from USBTMC 1.0 section
4.2.1.

It does not implement USB enumeration or device-node plumbing; callers
hand Open an already-opened *gousb.Device, and this package claims its
default interface, resolves the bulk endpoints and drives them.

A minimal round trip looks like:

	sess, err := usbtmc.Open(dev)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	if _, err := sess.Write([]byte("*IDN?\n")); err != nil {
		log.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := sess.Read(buf)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(buf[:n]))
*/
package usbtmc
