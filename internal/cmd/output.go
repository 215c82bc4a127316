package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/3leaps/s3keeper/pkg/output"
)

// Output formats.
const (
	formatJSONL = "jsonl"
	formatTable = "table"
)

// stdout is where command records go unless a file destination is given.
var stdout io.Writer = os.Stdout

// newJobID returns the correlation ID stamped on every JSONL record.
func newJobID() string {
	return uuid.New().String()
}

// createWriter opens a record writer. dest is "stdout" (or empty) or
// "file:<path>". The cleanup func closes the writer and any file.
func createWriter(format, dest, jobID, bucket string) (output.Writer, func(), error) {
	var sink io.Writer = stdout
	var file *os.File
	if dest != "" && dest != "stdout" {
		path := strings.TrimPrefix(dest, "file:")
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		sink, file = f, f
	}

	var w output.Writer
	if format == formatTable {
		w = output.NewTableWriter(sink)
	} else {
		w = output.NewJSONLWriter(sink, jobID, bucket)
	}

	cleanup := func() {
		_ = w.Close()
		if file != nil {
			_ = file.Close()
		}
	}
	return w, cleanup, nil
}
