package commands

import (
	"fmt"
	"io"

	"github.com/meme-go/meme/pkg/log"
)

// RunFilter copies the events of the capture at path that pass filter into
// a new capture at output, replacing any existing file. It returns the
// number of events written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.OpenFileLogger(output, log.FileOptions{Truncate: true})
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out.Written(), fmt.Errorf("failed to read event: %w", err)
		}
		out.Log(event)
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", output, err)
	}
	return out.Written(), nil
}
