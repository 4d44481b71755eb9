package media

import (
	"fmt"
	"io"
	"os"
)

// mpeg1Layer3Bitrates maps the MPEG-1 Layer III bitrate index to kbit/s.
// Index 0 (free) and 15 (bad) are unusable.
var mpeg1Layer3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// EstimateDuration returns an approximate track length in seconds for a
// constant-bitrate MPEG-1 Layer III file: audio size over the bitrate of
// the first frame. Returns 0 for anything it cannot parse; callers treat
// 0 as "duration unknown".
func EstimateDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	head := make([]byte, 10)
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, nil
	}

	offset := int64(0)
	if string(head[:3]) == "ID3" {
		// Skip the ID3v2 tag: syncsafe 28-bit size after the 10-byte header.
		tagSize := int64(head[6]&0x7f)<<21 | int64(head[7]&0x7f)<<14 | int64(head[8]&0x7f)<<7 | int64(head[9]&0x7f)
		offset = 10 + tagSize
		if offset >= size {
			return 0, nil
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(f, head[:4]); err != nil {
			return 0, nil
		}
	}

	// Frame sync: 11 set bits, then MPEG-1 (11), Layer III (01).
	if head[0] != 0xff || head[1]&0xfe != 0xfa {
		return 0, nil
	}
	bitrate := mpeg1Layer3Bitrates[head[2]>>4]
	if bitrate == 0 {
		return 0, nil
	}

	audioBytes := size - offset
	return float64(audioBytes*8) / float64(bitrate*1000), nil
}
