// Package trace stores axis cycles as a stream of packed Cap'n Proto
// messages, one message per cycle.
package trace

import (
	"bufio"
	"io"
	"os"

	"capnproto.org/go/capnp/v3"
	"github.com/pkg/errors"
)

type Writer struct {
	buf     *bufio.Writer
	encoder *capnp.Encoder
	closer  io.Closer
	count   int
}

func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{
		buf:     buf,
		encoder: capnp.NewPackedEncoder(buf),
	}
}

// Create truncates path and writes records to it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not create trace file")
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

func (w *Writer) Write(rec Record) error {
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return errors.Wrap(err, "could not create capnp message for trace record")
	}
	root, err := newRootRecord(seg)
	if err != nil {
		return errors.Wrap(err, "could not create trace record root")
	}
	root.set(rec)
	if err := w.encoder.Encode(msg); err != nil {
		return errors.Wrap(err, "could not encode trace record")
	}
	w.count++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Flush() error {
	return errors.Wrap(w.buf.Flush(), "could not flush trace")
}

func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = errors.Wrap(cerr, "could not close trace file")
		}
	}
	return err
}

type Reader struct {
	decoder *capnp.Decoder
	closer  io.Closer
}

func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: capnp.NewPackedDecoder(bufio.NewReader(r))}
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open trace file")
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	msg, err := r.decoder.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, errors.Wrap(err, "could not decode trace record")
	}
	root, err := readRootRecord(msg)
	if err != nil {
		return Record{}, errors.Wrap(err, "could not read trace record")
	}
	return root.get(), nil
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]Record, error) {
	records := []Record{}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return errors.Wrap(r.closer.Close(), "could not close trace file")
}
