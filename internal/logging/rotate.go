package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingFileWriter returns a writer appending to path, creating it and
// its directory on the first write. Once a write would grow the file past
// maxSizeMB it is renamed with a timestamp suffix (app-<time>.log) and a
// fresh file is started; only the newest maxFiles backups are kept. Both
// limits are clamped to at least 1. A single write larger than the limit is
// rejected rather than split.
func NewRotatingFileWriter(path string, maxSizeMB, maxFiles int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    max(maxSizeMB, 1),
		MaxBackups: max(maxFiles, 1),
	}
}
