package utils

import (
	"bytes"
	"compress/gzip"
	"os"
	"strconv"
)

// DefaultCompressionThreshold is the buffer size in bytes at which
// generated files are gzipped before being attached or served.
const DefaultCompressionThreshold = 5 * 1024 * 1024 // 5 MiB

// CompressionThreshold returns the configured compression threshold.
func CompressionThreshold() int {
	if raw := os.Getenv("ENFORCE_COMPRESSION_FILE_SIZE"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			return size
		}
	}
	return DefaultCompressionThreshold
}

// Compress gzips the buffer contents into a new buffer.
func Compress(buf *bytes.Buffer) (*bytes.Buffer, error) {
	out := &bytes.Buffer{}
	zw := gzip.NewWriter(out)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// ShouldCompress reports whether a buffer of the given size meets the
// compression threshold.
func ShouldCompress(size int) bool {
	return size >= CompressionThreshold()
}

// ConditionalCompress gzips the buffer when it meets the threshold or when
// forced. Returns whether compression was applied and the resulting buffer.
func ConditionalCompress(buf *bytes.Buffer, force bool) (bool, *bytes.Buffer, error) {
	if !force && !ShouldCompress(buf.Len()) {
		return false, buf, nil
	}
	out, err := Compress(buf)
	if err != nil {
		return false, nil, err
	}
	return true, out, nil
}
