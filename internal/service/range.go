package service

import (
	"errors"
	"strconv"
	"strings"
)

// errUnsatisfiableRange marks a Range header the streamer must answer with
// 416 rather than ignore.
var errUnsatisfiableRange = errors.New("unsatisfiable range")

// byteRange is a resolved inclusive byte window into a file.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseRange resolves a Range request header against the file size.
// It returns (nil, nil) when no range was requested, a resolved window on
// success, and errUnsatisfiableRange for anything malformed or outside the
// file. Only a single bytes range is supported; a suffix range "-n" selects
// the last n bytes, clamped to the file size.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}

	value, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errUnsatisfiableRange
	}
	if strings.Contains(value, ",") {
		return nil, errUnsatisfiableRange
	}

	startStr, endStr, ok := strings.Cut(value, "-")
	if !ok {
		return nil, errUnsatisfiableRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" && endStr == "" {
		return nil, errUnsatisfiableRange
	}

	if startStr == "" {
		// Suffix range: the last n bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, errUnsatisfiableRange
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, errUnsatisfiableRange
		}
	}

	if start >= size || end >= size || start > end {
		return nil, errUnsatisfiableRange
	}
	return &byteRange{start: start, end: end}, nil
}
