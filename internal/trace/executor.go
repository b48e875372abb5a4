package trace

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"calltrace/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// Recording describes a finished RecordCommand run.
type Recording struct {
	Lines    int // Lines of stderr written to the trace file
	Records  int // How many of them were trace records
	ExitCode int
}

// RecordCommand runs command through "sh -c" and writes everything the command
// prints on stderr to path, replacing any previous trace. The command's
// stdout is copied to stdout (which may be nil to discard it).
//
// A command that exits non-zero still produces a usable trace, so that is
// reported through Recording.ExitCode rather than as an error. Failures to
// start the command or write the trace are returned.
func RecordCommand(ctx context.Context, command string, stdout io.Writer, fs vfs.FS, path string) (Recording, error) {
	var rec Recording

	out, err := fs.Create(path)
	if err != nil {
		return rec, model.MarkIO(err, "failed to create %s", path)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = stdout

	// We only care about stderr for the trace
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return rec, errors.Wrap(err, "failed to attach to stderr")
	}
	if err := cmd.Start(); err != nil {
		return rec, errors.Wrapf(err, "failed to start %q", command)
	}

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(stderr)
	// Large buffer for long value records
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var writeErr error
	for scanner.Scan() {
		line := scanner.Text()
		rec.Lines++
		if ParseLine(line).Kind != KindOther {
			rec.Records++
		}
		if writeErr == nil {
			if _, err := w.WriteString(line + "\n"); err != nil {
				writeErr = err
			}
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// The child blocks on a full pipe unless the rest is read.
		_, _ = io.Copy(io.Discard, stderr)
	}

	waitErr := cmd.Wait()

	if writeErr == nil {
		writeErr = w.Flush()
	}
	if writeErr == nil {
		writeErr = out.Sync()
	}
	if writeErr != nil {
		return rec, model.MarkIO(writeErr, "failed to write %s", path)
	}
	if scanErr != nil {
		return rec, errors.Wrap(scanErr, "failed to read command stderr")
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		rec.ExitCode = exitErr.ExitCode()
		return rec, nil
	}
	if waitErr != nil {
		return rec, errors.Wrapf(waitErr, "failed to run %q", command)
	}
	return rec, nil
}
