// Package protocol defines the JSON wire messages exchanged with the
// storefront realtime voice endpoint.
//
// Messages are JSON text frames in both directions, discriminated by a
// top-level "type" field. Audio payloads are base64-encoded PCM16 mono
// 24kHz in both directions.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultPath is the backend realtime websocket path.
	DefaultPath = "/realtime/ws"

	// SampleRateHz is the fixed capture and playback sample rate. A mismatch
	// with the backend silently distorts pitch and speed rather than erroring,
	// so both directions are pinned here.
	SampleRateHz = 24000

	// Channels is the fixed channel count (mono).
	Channels = 1
)

// Outbound message type tags.
const (
	TypeAudioAppend   = "input_audio_buffer.append"
	TypeText          = "text"
	TypeImageUploaded = "image.uploaded"
)

// Inbound message type tags.
const (
	TypeSessionReady     = "session.ready"
	TypeSpeechStarted    = "user_speech_started"
	TypeSpeechStopped    = "user_speech_stopped"
	TypeTranscript       = "transcript"
	TypeAudio            = "audio"
	TypeResponseComplete = "response.complete"
	TypeProducts         = "products"
	TypeCartAction       = "cart_action"
	TypeImageReady       = "image.ready"
	TypeError            = "error"
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Cart action kinds carried by cart_action messages.
const (
	CartActionAdd    = "add_to_cart"
	CartActionRemove = "remove_from_cart"
	CartActionClear  = "clear_cart"
	CartActionView   = "view_cart"
)

// DecodeError describes a malformed or unsupported inbound frame.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Code) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badFrame(message string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message}
}

// ClientAudioAppend carries one base64-encoded PCM16 capture frame.
type ClientAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// NewClientAudioAppend builds an outbound audio frame message.
func NewClientAudioAppend(audioB64 string) ClientAudioAppend {
	return ClientAudioAppend{Type: TypeAudioAppend, Audio: audioB64}
}

// ClientText carries a text-only user turn.
type ClientText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewClientText builds an outbound text message.
func NewClientText(text string) ClientText {
	return ClientText{Type: TypeText, Text: text}
}

// ClientImageUploaded notifies the backend that an image was uploaded for
// visual search. The backend answers with an image.ready event.
type ClientImageUploaded struct {
	Type    string `json:"type"`
	ImageID string `json:"image_id"`
}

// NewClientImageUploaded builds an outbound image notification.
func NewClientImageUploaded(imageID string) ClientImageUploaded {
	return ClientImageUploaded{Type: TypeImageUploaded, ImageID: imageID}
}

// ServerSessionReady signals the backend session is configured and accepting
// input.
type ServerSessionReady struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// ServerSpeechStarted signals server-side VAD detected the user speaking.
// Clients flush playback immediately (barge-in).
type ServerSpeechStarted struct {
	Type string `json:"type"`
}

// ServerSpeechStopped signals the user stopped speaking. Informational only.
type ServerSpeechStopped struct {
	Type string `json:"type"`
}

// ServerTranscript carries transcription text. User transcripts arrive
// finalized in Text; assistant transcripts arrive incrementally in Delta.
type ServerTranscript struct {
	Type  string `json:"type"`
	Role  string `json:"role"`
	Text  string `json:"text,omitempty"`
	Delta string `json:"delta,omitempty"`
}

// ServerAudio carries one base64-encoded PCM16 playback chunk.
type ServerAudio struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerResponseComplete marks the end of an assistant response.
type ServerResponseComplete struct {
	Type string `json:"type"`
}

// ProductRef is a partial product identifier surfaced by a tool result. Full
// details are resolved out of band against the catalog API.
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServerProducts carries partial product candidates from a tool-triggered
// search. Tool names the originating function (search_products,
// search_similar_products, get_project_recommendations).
type ServerProducts struct {
	Type string `json:"type"`
	Tool string `json:"tool,omitempty"`
	Data struct {
		Products []ProductRef `json:"products"`
	} `json:"data"`
}

// ServerCartAction carries a tool-triggered cart mutation, forwarded verbatim
// to the cart collaborator.
type ServerCartAction struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerImageReady acknowledges an uploaded image.
type ServerImageReady struct {
	Type    string `json:"type"`
	ImageID string `json:"image_id"`
	Message string `json:"message,omitempty"`
}

// ServerError carries a server-reported application error. The session stays
// open; the message is surfaced for display.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerUnknown holds a frame with an unrecognized type tag. Unknown kinds are
// ignored and logged for diagnostics only.
type ServerUnknown struct {
	Type string
	Raw  json.RawMessage
}

// DecodeServerMessage decodes one inbound text frame into its typed message.
// Unrecognized type tags return ServerUnknown rather than an error; only
// frames that are malformed for their declared type fail.
func DecodeServerMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("missing type")
	}

	switch typ {
	case TypeSessionReady:
		var msg ServerSessionReady
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid session.ready frame")
		}
		return msg, nil
	case TypeSpeechStarted:
		return ServerSpeechStarted{Type: typ}, nil
	case TypeSpeechStopped:
		return ServerSpeechStopped{Type: typ}, nil
	case TypeTranscript:
		var msg ServerTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid transcript frame")
		}
		switch strings.TrimSpace(msg.Role) {
		case RoleUser, RoleAssistant:
		default:
			return nil, badFrame("transcript role must be user or assistant")
		}
		return msg, nil
	case TypeAudio:
		var msg ServerAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid audio frame")
		}
		if strings.TrimSpace(msg.Audio) == "" {
			return nil, badFrame("audio frame missing audio payload")
		}
		return msg, nil
	case TypeResponseComplete:
		return ServerResponseComplete{Type: typ}, nil
	case TypeProducts:
		var msg ServerProducts
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid products frame")
		}
		return msg, nil
	case TypeCartAction:
		var msg ServerCartAction
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid cart_action frame")
		}
		if strings.TrimSpace(msg.Action) == "" {
			return nil, badFrame("cart_action missing action")
		}
		return msg, nil
	case TypeImageReady:
		var msg ServerImageReady
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid image.ready frame")
		}
		return msg, nil
	case TypeError:
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid error frame")
		}
		return msg, nil
	default:
		return ServerUnknown{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}
