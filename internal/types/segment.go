package types

import (
	"encoding/json"
	"fmt"
)

// Modality names used on flagged segments.
const (
	ModalityText  = "text"
	ModalityImage = "image"
	ModalityAudio = "audio"
	ModalityVideo = "video"
)

// FlaggedSegment is a region of evidence suspected of being AI generated.
// The concrete type depends on the modality.
type FlaggedSegment interface {
	Modality() string
	SegmentReason() string
	SegmentConfidence() int
	flaggedSegment()
}

// TimeRangeSegment flags a span of an audio or video track.
type TimeRangeSegment struct {
	Media      string  `json:"modality"`
	StartSec   float64 `json:"startSec"`
	EndSec     float64 `json:"endSec"`
	Reason     string  `json:"reason"`
	Confidence int     `json:"confidence"`
}

// TextSegment flags a snippet of text.
type TextSegment struct {
	Snippet    string `json:"snippet"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}

// ImageSegment flags a region of an image described by a hint.
type ImageSegment struct {
	RegionHint string `json:"regionHint"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}

func (s TimeRangeSegment) Modality() string       { return s.Media }
func (s TimeRangeSegment) SegmentReason() string  { return s.Reason }
func (s TimeRangeSegment) SegmentConfidence() int { return s.Confidence }
func (TimeRangeSegment) flaggedSegment()          {}

func (TextSegment) Modality() string         { return ModalityText }
func (s TextSegment) SegmentReason() string  { return s.Reason }
func (s TextSegment) SegmentConfidence() int { return s.Confidence }
func (TextSegment) flaggedSegment()          {}

func (ImageSegment) Modality() string         { return ModalityImage }
func (s ImageSegment) SegmentReason() string  { return s.Reason }
func (s ImageSegment) SegmentConfidence() int { return s.Confidence }
func (ImageSegment) flaggedSegment()          {}

// MarshalJSON writes the segment with its modality.
func (s TimeRangeSegment) MarshalJSON() ([]byte, error) {
	type alias TimeRangeSegment
	a := alias(s)
	if a.Media == "" {
		a.Media = ModalityVideo
	}
	return json.Marshal(a)
}

// MarshalJSON writes the segment with its modality.
func (s TextSegment) MarshalJSON() ([]byte, error) {
	type alias TextSegment
	return json.Marshal(struct {
		Modality string `json:"modality"`
		alias
	}{ModalityText, alias(s)})
}

// MarshalJSON writes the segment with its modality.
func (s ImageSegment) MarshalJSON() ([]byte, error) {
	type alias ImageSegment
	return json.Marshal(struct {
		Modality string `json:"modality"`
		alias
	}{ModalityImage, alias(s)})
}

// FlaggedSegments is a list of segments that decodes by modality.
type FlaggedSegments []FlaggedSegment

// UnmarshalJSON decodes each element according to its "modality" field.
func (fs *FlaggedSegments) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FlaggedSegments, 0, len(raw))
	for i, item := range raw {
		var head struct {
			Modality string `json:"modality"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("flagged segment %d: %w", i, err)
		}
		switch head.Modality {
		case ModalityAudio, ModalityVideo:
			var s TimeRangeSegment
			type alias TimeRangeSegment
			if err := json.Unmarshal(item, (*alias)(&s)); err != nil {
				return fmt.Errorf("flagged segment %d: %w", i, err)
			}
			out = append(out, s)
		case ModalityText:
			var s TextSegment
			type alias TextSegment
			if err := json.Unmarshal(item, (*alias)(&s)); err != nil {
				return fmt.Errorf("flagged segment %d: %w", i, err)
			}
			out = append(out, s)
		case ModalityImage:
			var s ImageSegment
			type alias ImageSegment
			if err := json.Unmarshal(item, (*alias)(&s)); err != nil {
				return fmt.Errorf("flagged segment %d: %w", i, err)
			}
			out = append(out, s)
		default:
			return fmt.Errorf("flagged segment %d: unknown modality %q", i, head.Modality)
		}
	}
	*fs = out
	return nil
}
