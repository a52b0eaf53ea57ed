// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"io"
	"os"
	"slices"
	"sync"
)

// BytesSource is a Source backed by in-memory data, one payload per
// mime type.
type BytesSource struct {
	mimeTypes []string
	data      map[string][]byte

	mu        sync.Mutex
	requested []string
}

// NewBytesSource returns a source offering mime types in the given
// order. Types missing from data are offered with empty payloads.
func NewBytesSource(mimeTypes []string, data map[string][]byte) *BytesSource {
	return &BytesSource{mimeTypes: slices.Clone(mimeTypes), data: data}
}

// TextSource offers text as UTF-8 and plain text.
func TextSource(text string) *BytesSource {
	return NewBytesSource(
		[]string{"text/plain;charset=utf-8", "text/plain"},
		map[string][]byte{
			"text/plain;charset=utf-8": []byte(text),
			"text/plain":               []byte(text),
		},
	)
}

func (s *BytesSource) MimeTypes() []string { return slices.Clone(s.mimeTypes) }

// Send writes the payload on a new goroutine and closes destination.
func (s *BytesSource) Send(mime string, destination *os.File) {
	s.mu.Lock()
	s.requested = append(s.requested, mime)
	s.mu.Unlock()

	payload := s.data[mime]
	go func() {
		defer destination.Close()
		destination.Write(payload)
	}()
}

// Requested returns the mime types requested through Send so far.
func (s *BytesSource) Requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requested)
}

// ReadAll reads everything a source sends for mime. It blocks until
// the source closes its end, so it must not be called on the event
// loop with a source that replies on the loop.
func ReadAll(source Source, mime string) ([]byte, error) {
	read, write, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	defer read.Close()
	source.Send(mime, write)
	return io.ReadAll(read)
}
