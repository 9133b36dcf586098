// Package decode invokes the external NOTAM decoder. The decoder is an
// untrusted black box: it runs as a subprocess with a hard timeout, and any
// failure surfaces as a per-record error, never as a fatal condition.
package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/model"
)

// Decoder maps raw NOTAM text to a structured interpretation.
type Decoder interface {
	Decode(ctx context.Context, text string) (*model.Interpretation, error)
}

// ExecDecoder runs a decoder command as a subprocess, feeding the raw text on
// stdin and reading a JSON interpretation from stdout.
type ExecDecoder struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewExecDecoder creates a subprocess decoder.
func NewExecDecoder(command string, args []string, timeout time.Duration) *ExecDecoder {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ExecDecoder{Command: command, Args: args, Timeout: timeout}
}

func (d *ExecDecoder) Decode(ctx context.Context, text string) (*model.Interpretation, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, eris.Wrapf(ctx.Err(), "decode: %s timed out after %s", d.Command, d.Timeout)
		}
		zap.L().Debug("decode: subprocess failed",
			zap.String("command", d.Command),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "decode: run %s", d.Command)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, eris.Errorf("decode: %s produced no output", d.Command)
	}

	var interp model.Interpretation
	if err := json.Unmarshal(out, &interp); err != nil {
		return nil, eris.Wrapf(err, "decode: unmarshal %s output", d.Command)
	}
	if interp == (model.Interpretation{}) {
		return nil, eris.Errorf("decode: %s returned an empty interpretation", d.Command)
	}

	return &interp, nil
}
