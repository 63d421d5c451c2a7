package buffer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Dump writes the samples as little-endian binary.
func (b *Buffer[T]) Dump(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, b.Samples)
}

// DumpText writes one line per time sample with space separated values.
func (b *Buffer[T]) DumpText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < b.NSamples; i++ {
		for _, v := range b.Row(i) {
			if _, err := fmt.Fprint(bw, v, " "); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
