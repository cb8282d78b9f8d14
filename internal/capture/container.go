// Container-level helpers built on gopacket/pcapgo. These touch only the
// capture's global header, never packet-layer fields — field decoding stays
// the external tool's job.
package capture

import (
	"bytes"
	"io"
	"os"

	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

// Format is the on-disk capture container type.
type Format int

const (
	FormatUnknown Format = iota
	FormatPcap
	FormatPcapNG
)

func (f Format) Extension() string {
	switch f {
	case FormatPcap:
		return ".pcap"
	case FormatPcapNG:
		return ".pcapng"
	default:
		return ""
	}
}

var (
	pcapMagicLE = []byte{0xd4, 0xc3, 0xb2, 0xa1}
	pcapMagicBE = []byte{0xa1, 0xb2, 0xc3, 0xd4}
	pcapNGMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}
)

// SniffFormat reads the first 4 bytes of a capture file and identifies its
// container format from the magic number, independent of file extension.
func SniffFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var header [4]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return FormatUnknown, nil
		}
		return FormatUnknown, errors.Wrapf(err, "reading header of %s", path)
	}

	switch {
	case bytes.Equal(header[:], pcapMagicLE), bytes.Equal(header[:], pcapMagicBE):
		return FormatPcap, nil
	case bytes.Equal(header[:], pcapNGMagic):
		return FormatPcapNG, nil
	default:
		return FormatUnknown, nil
	}
}

// WriteEmpty synthesizes a byte-valid, zero-packet capture at outPath with
// the same container format as the file at likePath. This backs the
// time-align no-overlap "allow empty" branch without shelling out to editcap
// for a file that, by construction, will never contain packets.
func WriteEmpty(likePath, outPath string) error {
	format, err := SniffFormat(likePath)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outPath)
	}
	defer out.Close()

	switch format {
	case FormatPcapNG:
		w, err := pcapgo.NewNgWriter(out, linkTypeEthernet)
		if err != nil {
			return errors.Wrap(err, "initializing empty pcapng writer")
		}
		return w.Flush()
	default:
		w := pcapgo.NewWriter(out)
		if err := w.WriteFileHeader(defaultSnapLen, linkTypeEthernet); err != nil {
			return errors.Wrap(err, "writing empty pcap header")
		}
		return nil
	}
}

const (
	defaultSnapLen   = 262144
	linkTypeEthernet = 1 // gopacket/layers.LinkTypeEthernet; the numeric value avoids importing layers into this decoder-free file.
)
