/*Package usbtmc implements datagram encoding and decoding for USB Test and
Measurement Class devices, and exposes a bulk-transfer connection as an
io.ReadWriteCloser so it can sit in a comm.Pool next to TCP and serial links.
AFG31000 and AWG5200 front-panel USB device ports speak this protocol.

It does not include features to support multi-packet
messaging, and thus assumes your data fits in the remote's buffer.

To send a message:
1.  Allocate a send buffer
2.  Write the header to it
3.  Write your data to it
4.  Ensure that the total transmission size is a multiple of 4 bytes before flushing

To receive a message:
1.  Create a read header and send it on the Out endpoint
2.  Read from the In endpoint
3.  Strip the 12 byte header
*/
package usbtmc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
	"github.com/nasa-jpl/tekgen/comm"
)

const (
	// reserved is the byte to insert in reserved header fields
	reserved = 0x00

	headerSize = 12

	msgDevDepOut     = 0x01
	msgRequestDevDep = 0x02

	// bulkEndpoint is the endpoint number used for both directions
	bulkEndpoint = 2
)

// bTagger can generate atomic bTags
type bTagger interface {
	nextbTag() byte
}

// bTagGen is a concurrent-safe bTag generator
type bTagGen struct {
	sync.Mutex

	value byte
}

func newBTagGen() *bTagGen {
	return &bTagGen{}
}

// nextbTag returns 1..255, wrapping; 0 is not a legal bTag
func (b *bTagGen) nextbTag() byte {
	b.Lock()
	defer b.Unlock()
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

// invbTag computes the bitwise inversion of a btag, per USBTMC standard table 1 offset 2
func invbTag(b byte) byte {
	return b ^ 0xff
}

// encBulkOutHeader creates the header defined in USBTMC standard, Table 3
func encBulkOutHeader(btag bTagger, datalen int) [headerSize]byte {
	out := [headerSize]byte{}
	/* data map by offset:
	0 MsgID, DEV_DEP_MSG_OUT
	1 bTag, 1 < x < 255, unique and incrementing with each message
	2 bTagInverse
	3 Reserved (0x00)
	4-7 transferSize, LSB first, exclusive of header and alignment
	8 bitmap, bit 0 EOM
	9-11 reserved
	*/
	tag := btag.nextbTag()
	out[0] = msgDevDepOut
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(datalen))
	out[8] = 0x01 // always end of message
	return out
}

// encBulkInHeader creates the header defined in USBTMC standard, Table 4.
// if terminator is nil, puts 0x00 in the header and sets the bit to use it to false
func encBulkInHeader(btag bTagger, bufsize int, terminator *byte) [headerSize]byte {
	out := [headerSize]byte{}
	tag := btag.nextbTag()
	out[0] = msgRequestDevDep
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(bufsize))
	if terminator != nil {
		out[8] = 0x02
		out[9] = *terminator
	}
	return out
}

// decBulkInHeader validates a DEV_DEP_MSG_IN header and returns its transfer size
func decBulkInHeader(b []byte) (int, error) {
	if len(b) < headerSize {
		return 0, fmt.Errorf("only received %d bytes, need at least %d to form header", len(b), headerSize)
	}
	if b[0] != msgRequestDevDep {
		return 0, fmt.Errorf("unexpected MsgID %#x in bulk-in header", b[0])
	}
	if b[2] != invbTag(b[1]) {
		return 0, fmt.Errorf("corrupt bulk-in header, bTag %#x inverse %#x", b[1], b[2])
	}
	return int(binary.LittleEndian.Uint32(b[4:8])), nil
}

// pad extends b with zeros to a multiple of four bytes
func pad(b []byte) []byte {
	const alignment = 4
	if residual := len(b) % alignment; residual > 0 {
		b = append(b, make([]byte, alignment-residual)...)
	}
	return b
}

// Conn is a USBTMC bulk connection.  It satisfies io.ReadWriteCloser
type Conn struct {
	tagger bTagger
	term   byte
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	ctx    *gousb.Context
	device *gousb.Device
	closer func()
}

// Open opens the first device matching the vendor and product ID
func Open(vid, pid uint16) (*Conn, error) {
	c := &Conn{tagger: newBTagGen(), term: '\n'}
	var err error
	c.ctx = gousb.NewContext()
	c.device, err = c.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		c.ctx.Close()
		return nil, err
	}
	if c.device == nil {
		c.ctx.Close()
		return nil, fmt.Errorf("no USB device with VID:PID %04x:%04x", vid, pid)
	}
	if err = c.device.SetAutoDetach(true); err != nil {
		c.Close()
		return nil, err
	}
	var iface *gousb.Interface
	iface, c.closer, err = c.device.DefaultInterface()
	if err != nil {
		c.Close()
		return nil, err
	}
	if c.in, err = iface.InEndpoint(bulkEndpoint); err != nil {
		c.Close()
		return nil, err
	}
	if c.out, err = iface.OutEndpoint(bulkEndpoint); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Write sends b as a single DEV_DEP_MSG_OUT transfer
func (c *Conn) Write(b []byte) (int, error) {
	hdr := encBulkOutHeader(c.tagger, len(b))
	msg := pad(append(hdr[:], b...))
	_, err := c.out.Write(msg)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read requests up to len(p) bytes from the device and copies the payload into p
func (c *Conn) Read(p []byte) (int, error) {
	hdr := encBulkInHeader(c.tagger, len(p), &c.term)
	if _, err := c.out.Write(hdr[:]); err != nil {
		return 0, err
	}
	buf := make([]byte, headerSize+len(p)+3)
	n, err := c.in.Read(buf)
	if err != nil {
		return 0, err
	}
	size, err := decBulkInHeader(buf[:n])
	if err != nil {
		return 0, err
	}
	data := buf[headerSize:n]
	if size < len(data) {
		data = data[:size]
	}
	return copy(p, data), nil
}

// Close releases the interface, the device and the USB context
func (c *Conn) Close() error {
	if c.closer != nil {
		c.closer()
	}
	var err error
	if c.device != nil {
		err = c.device.Close()
	}
	if c.ctx != nil {
		if err2 := c.ctx.Close(); err == nil {
			err = err2
		}
	}
	return err
}

// ParseAddr parses "usb:VID:PID" with hexadecimal IDs, e.g. usb:0699:0358
func ParseAddr(addr string) (vid, pid uint16, err error) {
	parts := strings.Split(addr, ":")
	if len(parts) != 3 || !strings.EqualFold(parts[0], "usb") {
		return 0, 0, fmt.Errorf("%q is not a usb:VID:PID address", addr)
	}
	v, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("vendor ID in %q: %w", addr, err)
	}
	p, err := strconv.ParseUint(parts[2], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("product ID in %q: %w", addr, err)
	}
	return uint16(v), uint16(p), nil
}

// ConnMaker returns a comm.CreationFunc opening the device at vid:pid
func ConnMaker(vid, pid uint16) comm.CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return Open(vid, pid)
	}
}
