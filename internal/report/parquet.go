package report

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const flushInterval = 50_000

// WriteParquet writes outcome rows as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, rows []OutcomeRow) error {
	writer := parquet.NewGenericWriter[OutcomeRow](w,
		parquet.Compression(&parquet.Snappy),
	)
	for start := 0; start < len(rows); start += flushInterval {
		end := min(start+flushInterval, len(rows))
		if _, err := writer.Write(rows[start:end]); err != nil {
			return fmt.Errorf("write outcome rows: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("flush outcomes: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close outcome writer: %w", err)
	}
	return nil
}

// WriteParquetFile creates path and writes rows to it.
func WriteParquetFile(path string, rows []OutcomeRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create outcome parquet: %w", err)
	}
	if err := WriteParquet(file, rows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
