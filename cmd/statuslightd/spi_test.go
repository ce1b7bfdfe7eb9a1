package main

import (
	"bytes"
	"testing"

	"dev.acmcsuf.com/christmas/lib/xcolor"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestSPIDevice(t *testing.T) {
	var buf bytes.Buffer

	d, err := newSPIDevice(spitest.NewRecordRaw(&buf), nil, 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Flush(); err != nil {
		t.Fatal("failed to flush:", err)
	}
	dark := bytes.Clone(buf.Bytes())
	if len(dark) == 0 {
		t.Fatal("nothing written to the SPI port")
	}

	buf.Reset()
	d.SetRGBAt(1, xcolor.RGB{R: 255})
	assertEq(t, []byte{0, 0, 0, 255, 0, 0, 0, 0, 0}, d.buf)

	if err := d.Flush(); err != nil {
		t.Fatal("failed to flush:", err)
	}
	if bytes.Equal(dark, buf.Bytes()) {
		t.Error("lit frame encoded the same as a dark frame")
	}

	if err := d.Close(); err != nil {
		t.Fatal("failed to close:", err)
	}
}
