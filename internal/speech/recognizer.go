// Package speech wraps an external speech-to-text capability as short-lived capture sessions.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
)

// Recognizer produces one final transcript for the given speech tag.
type Recognizer interface {
	Recognize(ctx context.Context, tag string) (string, error)
}

type execRecognizer struct {
	cmd []string
}

type execResult struct {
	Text string `json:"text"`
}

// NewExecRecognizer parses command into an argv. An empty command means no capability and yields nil.
func NewExecRecognizer(command string) (Recognizer, error) {
	if strings.TrimSpace(command) == "" {
		return nil, nil
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &execRecognizer{cmd: args}, nil
}

func (r *execRecognizer) Recognize(ctx context.Context, tag string) (string, error) {
	args := append([]string{}, r.cmd[1:]...)
	if tag != "" {
		args = append(args, "--lang", tag)
	}
	command := exec.CommandContext(ctx, r.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", apperrors.CapabilityUnavailable(fmt.Errorf("speech command: %w", err))
		}
		cause := fmt.Errorf("speech command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		return "", apperrors.Recognition(ClassifyStderr(stderr.String()), cause)
	}

	text, err := parseTranscript(stdout.Bytes())
	if err != nil {
		return "", apperrors.Recognition(apperrors.RecognitionOther, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.Recognition(apperrors.RecognitionNoSpeech, errors.New("empty transcript"))
	}
	return text, nil
}

// parseTranscript returns the transcript verbatim, dropping only the line
// terminator the command prints after plain text.
func parseTranscript(out []byte) (string, error) {
	if trimmed := bytes.TrimSpace(out); len(trimmed) > 0 && trimmed[0] == '{' {
		var resp execResult
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return "", fmt.Errorf("decode speech response: %w", err)
		}
		return resp.Text, nil
	}
	text := strings.TrimSuffix(string(out), "\n")
	return strings.TrimSuffix(text, "\r"), nil
}

// ClassifyStderr maps recognizer diagnostics onto a recognition sub-kind.
func ClassifyStderr(stderr string) apperrors.RecognitionKind {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "no-speech"), strings.Contains(s, "no speech"):
		return apperrors.RecognitionNoSpeech
	case strings.Contains(s, "not-allowed"), strings.Contains(s, "permission"):
		return apperrors.RecognitionPermissionDenied
	default:
		return apperrors.RecognitionOther
	}
}
