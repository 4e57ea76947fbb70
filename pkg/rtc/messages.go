package rtc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/chriscow/meetsl-go/pkg/caption"
)

// Message type constants
const (
	TypeFrame    = "frame"
	TypeSignPred = "sign_pred"
)

var (
	// ErrMalformed is returned for messages that are not valid JSON objects or
	// are missing required fields.
	ErrMalformed = errors.New("malformed message")

	// ErrUnexpectedType is returned for well-formed messages of a type the
	// receiver does not handle.
	ErrUnexpectedType = errors.New("unexpected message type")
)

// FrameMessage is the outbound frame envelope.
type FrameMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"` // base64 JPEG
	TS      int64  `json:"ts"`
}

// PredictionMessage is the inbound recognizer output envelope.
type PredictionMessage struct {
	Type       string  `json:"type"`
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
	TS         int64   `json:"ts"`
}

// EncodeFrame builds the JSON frame message for f.
func EncodeFrame(f *Frame) ([]byte, error) {
	return json.Marshal(FrameMessage{
		Type:    TypeFrame,
		Payload: base64.StdEncoding.EncodeToString(f.Data),
		TS:      f.TS,
	})
}

// DecodeFrame parses a frame message and returns the JPEG bytes and ts.
func DecodeFrame(data []byte) ([]byte, int64, error) {
	var msg FrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type != TypeFrame {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnexpectedType, msg.Type)
	}
	jpg, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil || len(jpg) == 0 {
		return nil, 0, fmt.Errorf("%w: bad payload", ErrMalformed)
	}
	return jpg, msg.TS, nil
}

// EncodePrediction builds the JSON prediction message for p.
func EncodePrediction(p caption.Prediction) ([]byte, error) {
	return json.Marshal(PredictionMessage{
		Type:       TypeSignPred,
		Token:      p.Token,
		Confidence: p.Confidence,
		TS:         p.TS,
	})
}

// rawPrediction uses pointers so absent fields can be told apart from zero
// values. ts is a float because recognizers echo it back through numeric
// pipelines that do not preserve integers.
type rawPrediction struct {
	Type       string   `json:"type"`
	Token      *string  `json:"token"`
	Confidence *float64 `json:"confidence"`
	TS         *float64 `json:"ts"`
}

// DecodePrediction parses an inbound message. Anything that is not a complete
// sign_pred message yields an error; callers drop such messages.
func DecodePrediction(data []byte) (caption.Prediction, error) {
	var raw rawPrediction
	if err := json.Unmarshal(data, &raw); err != nil {
		return caption.Prediction{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Type != TypeSignPred {
		return caption.Prediction{}, fmt.Errorf("%w: %q", ErrUnexpectedType, raw.Type)
	}
	if raw.Token == nil || *raw.Token == "" || raw.Confidence == nil || raw.TS == nil {
		return caption.Prediction{}, fmt.Errorf("%w: missing field", ErrMalformed)
	}
	conf := *raw.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return caption.Prediction{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformed, conf)
	}
	return caption.Prediction{
		Token:      *raw.Token,
		Confidence: conf,
		TS:         int64(*raw.TS),
	}, nil
}
