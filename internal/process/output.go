package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Output runs args to completion with a timeout and returns stdout. On a
// non-zero exit the returned error includes stderr.
func Output(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s: %w", args[0], ctx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return out, fmt.Errorf("%w: %s", &ExitError{ID: args[0], Code: exitCodeFromError(err)}, msg)
	}
	return out, nil
}
