package manifest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrPartialWrite reports that at least one manifest could not be stored.
// Manifests written successfully in the same run remain valid.
var ErrPartialWrite = errors.New("partial manifest write")

// NodeWriteFailure describes one manifest that could not be stored.
type NodeWriteFailure struct {
	Host string `json:"host"`
	File string `json:"file"`
	Err  error  `json:"-"`
}

// WriteError lists every failed manifest of a WriteAll call.
type WriteError struct {
	Failures []NodeWriteFailure
}

func (e *WriteError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Host, f.Err))
	}
	return fmt.Sprintf("%s (%d failed): %s", ErrPartialWrite, len(e.Failures), strings.Join(parts, "; "))
}

func (e *WriteError) Unwrap() error {
	return ErrPartialWrite
}

// Hosts returns the hosts whose manifests failed, in topology order.
func (e *WriteError) Hosts() []string {
	hosts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		hosts = append(hosts, f.Host)
	}
	return hosts
}

// WriteAll encodes and stores every entry. Each write is independent: a
// failure is recorded and the remaining entries are still attempted. It
// returns the names written, in entry order, and a *WriteError if any
// entry failed.
func WriteAll(ctx context.Context, sink Sink, entries []Entry, f Format, concurrency int) ([]string, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	errs := make([]error, len(entries))

	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i, e := range entries {
		eg.Go(func() error {
			errs[i] = writeOne(ctx, sink, e, f)
			return nil
		})
	}
	_ = eg.Wait()

	var (
		written  []string
		failures []NodeWriteFailure
	)
	for i, e := range entries {
		name := Filename(e.Host, f)
		if errs[i] != nil {
			failures = append(failures, NodeWriteFailure{Host: e.Host, File: name, Err: errs[i]})
			continue
		}
		written = append(written, name)
	}
	if len(failures) > 0 {
		return written, &WriteError{Failures: failures}
	}
	return written, nil
}

func writeOne(ctx context.Context, sink Sink, e Entry, f Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(e.Manifest, f)
	if err != nil {
		return err
	}
	return sink.Put(ctx, Filename(e.Host, f), data)
}
