package rtc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/pkg/caption"
)

func TestEncodeFrame(t *testing.T) {
	is := is.New(t)

	frame := &Frame{Data: []byte{0xFF, 0xD8, 0x01}, Width: 2, Height: 2, TS: 1700000000123}
	data, err := EncodeFrame(frame)
	is.NoErr(err)

	var msg map[string]any
	is.NoErr(json.Unmarshal(data, &msg))
	is.Equal(msg["type"], "frame")
	is.Equal(msg["payload"], "/9gB")
	is.Equal(msg["ts"], float64(1700000000123))

	jpg, ts, err := DecodeFrame(data)
	is.NoErr(err)
	is.Equal(jpg, frame.Data)
	is.Equal(ts, frame.TS)
}

func TestDecodePrediction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    caption.Prediction
		wantErr error
	}{
		{
			name:  "valid",
			input: `{"type":"sign_pred","token":"HELLO","confidence":0.92,"ts":1700000000123}`,
			want:  caption.Prediction{Token: "HELLO", Confidence: 0.92, TS: 1700000000123},
		},
		{
			name:  "float ts",
			input: `{"type":"sign_pred","token":"YES","confidence":0.5,"ts":1700000000123.0}`,
			want:  caption.Prediction{Token: "YES", Confidence: 0.5, TS: 1700000000123},
		},
		{
			name:  "zero confidence is present",
			input: `{"type":"sign_pred","token":"YES","confidence":0,"ts":1}`,
			want:  caption.Prediction{Token: "YES", Confidence: 0, TS: 1},
		},
		{name: "not json", input: `hello`, wantErr: ErrMalformed},
		{name: "array", input: `[1,2]`, wantErr: ErrMalformed},
		{name: "other type", input: `{"type":"error","message":"x"}`, wantErr: ErrUnexpectedType},
		{name: "missing token", input: `{"type":"sign_pred","confidence":0.9,"ts":1}`, wantErr: ErrMalformed},
		{name: "empty token", input: `{"type":"sign_pred","token":"","confidence":0.9,"ts":1}`, wantErr: ErrMalformed},
		{name: "missing confidence", input: `{"type":"sign_pred","token":"A","ts":1}`, wantErr: ErrMalformed},
		{name: "missing ts", input: `{"type":"sign_pred","token":"A","confidence":0.9}`, wantErr: ErrMalformed},
		{name: "confidence out of range", input: `{"type":"sign_pred","token":"A","confidence":1.2,"ts":1}`, wantErr: ErrMalformed},
		{name: "wrong field type", input: `{"type":"sign_pred","token":7,"confidence":0.9,"ts":1}`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePrediction([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodePrediction() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePrediction() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodePrediction() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodePrediction_RoundTrips(t *testing.T) {
	is := is.New(t)

	p := caption.Prediction{Token: "THANKS", Confidence: 0.81, TS: 42}
	data, err := EncodePrediction(p)
	is.NoErr(err)

	got, err := DecodePrediction(data)
	is.NoErr(err)
	is.Equal(got, p)
}

func TestNewFrame(t *testing.T) {
	if _, err := NewFrame([]byte{0x89, 'P', 'N', 'G'}, 10, 10, 1); err == nil {
		t.Error("expected error for non-JPEG data")
	}
	if _, err := NewFrame([]byte{0xFF, 0xD8}, 0, 10, 1); err == nil {
		t.Error("expected error for zero width")
	}

	f, err := NewFrame([]byte{0xFF, 0xD8, 0x00}, 4, 3, 7)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	c := f.Clone()
	c.Data[2] = 0x42
	if f.Data[2] != 0x00 {
		t.Error("Clone should not share data")
	}
	if f.Size() != 3 {
		t.Errorf("Size() = %d, want 3", f.Size())
	}
}
