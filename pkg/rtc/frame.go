// Package rtc defines the media and wire types exchanged with the remote sign
// recognizer.
package rtc

import (
	"bytes"
	"fmt"
)

// jpegSOI is the start-of-image marker every baseline JPEG begins with.
var jpegSOI = []byte{0xFF, 0xD8}

// Frame is one encoded camera frame.
// TS is the capture wall-clock time in ms and doubles as the frame's identity
// when the recognizer echoes it back.
type Frame struct {
	Data   []byte // JPEG
	Width  int
	Height int
	TS     int64
}

// NewFrame creates a Frame after checking that data looks like a JPEG image.
func NewFrame(data []byte, width, height int, ts int64) (*Frame, error) {
	if !bytes.HasPrefix(data, jpegSOI) {
		return nil, fmt.Errorf("frame data is not a JPEG image (%d bytes)", len(data))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	return &Frame{Data: data, Width: width, Height: height, TS: ts}, nil
}

// Clone creates a deep copy of the Frame.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Data: data, Width: f.Width, Height: f.Height, TS: f.TS}
}

// Size returns the encoded size in bytes.
func (f *Frame) Size() int {
	return len(f.Data)
}
