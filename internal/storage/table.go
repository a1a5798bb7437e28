package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// EncodeTable renders rows as a CSV document with a header derived from the
// csv struct tags. An empty slice still yields the header line so partition
// files are self-describing.
func EncodeTable[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)

	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return nil, eris.Wrap(err, "storage: encode csv header")
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return nil, eris.Wrap(err, "storage: encode csv row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "storage: flush csv")
	}
	return buf.Bytes(), nil
}

// DecodeTable parses a CSV document produced by EncodeTable.
func DecodeTable[T any](data []byte) ([]T, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "storage: open csv decoder")
	}

	var rows []T
	for {
		var row T
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "storage: decode csv row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteTable encodes rows and writes them to key.
func WriteTable[T any](ctx context.Context, s Storage, key string, rows []T) error {
	data, err := EncodeTable(rows)
	if err != nil {
		return err
	}
	return s.Write(ctx, key, data)
}

// ReadTable reads and decodes the table at key.
func ReadTable[T any](ctx context.Context, s Storage, key string) ([]T, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeTable[T](data)
}

// ReadTablePrefix reads every partition file under prefix and concatenates
// the rows in key order.
func ReadTablePrefix[T any](ctx context.Context, s Storage, prefix string) ([]T, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var all []T
	for _, key := range keys {
		rows, err := ReadTable[T](ctx, s, key)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}
