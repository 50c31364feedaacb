// Package apperrors defines the user-facing error taxonomy.
package apperrors

import (
	"errors"
	"strings"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindRecognition           Kind = "recognition"
	KindNetwork               Kind = "network"
	KindContract              Kind = "contract"
)

// RecognitionKind refines KindRecognition.
type RecognitionKind string

const (
	RecognitionNoSpeech         RecognitionKind = "no_speech"
	RecognitionPermissionDenied RecognitionKind = "permission_denied"
	RecognitionOther            RecognitionKind = "other"
)

type Error struct {
	Kind        Kind
	Recognition RecognitionKind
	// SafeMessage is shown to the user as-is.
	SafeMessage string
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindValidation:
		return "Please enter some text or use the microphone"
	case KindCapabilityUnavailable:
		return "Speech recognition not supported in this environment. Configure a speech command or type your text."
	case KindRecognition:
		return "Speech recognition failed. Please type your text instead."
	case KindNetwork:
		return "An error occurred. Please try again later."
	case KindContract:
		return "Unexpected response from the service."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{Kind: kind, SafeMessage: msg, Cause: cause}
}

func Validation(msg string) error {
	return New(KindValidation, msg, nil)
}

func Network(msg string, cause error) error {
	return New(KindNetwork, msg, cause)
}

func Contract(msg string, cause error) error {
	return New(KindContract, msg, cause)
}

func CapabilityUnavailable(cause error) error {
	return New(KindCapabilityUnavailable, "", cause)
}

// Recognition builds a recognition error with the message matching its sub-kind.
func Recognition(kind RecognitionKind, cause error) error {
	msg := "Speech recognition failed. Please type your text instead."
	switch kind {
	case RecognitionNoSpeech:
		msg = "No speech detected. Please try again."
	case RecognitionPermissionDenied:
		msg = "Microphone access denied. Please enable microphone permissions."
	default:
		kind = RecognitionOther
	}
	return &Error{Kind: KindRecognition, Recognition: kind, SafeMessage: msg, Cause: cause}
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// RecognitionKindOf returns the recognition sub-kind, if err is a recognition error.
func RecognitionKindOf(err error) (RecognitionKind, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindRecognition {
		return "", false
	}
	return e.Recognition, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
