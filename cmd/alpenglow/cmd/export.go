package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/model/encoding"
	"github.com/onflow/alpenglow/model/encoding/cbor"
	"github.com/onflow/alpenglow/model/encoding/json"
)

const (
	formatJSON = "json"
	formatCBOR = "cbor"
)

func encoderFor(format string) (encoding.Encoder, error) {
	switch format {
	case formatJSON:
		return json.NewEncoder(), nil
	case formatCBOR:
		return cbor.NewEncoder()
	default:
		return nil, fmt.Errorf("unknown export format %q, expected %s or %s", format, formatJSON, formatCBOR)
	}
}

// writeSnapshots writes one file per validator into dir.
func writeSnapshots(dir string, format string, snaps []*formal.Snapshot) error {
	encoder, err := encoderFor(format)
	if err != nil {
		return err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("could not create export directory: %w", err)
	}
	for _, snap := range snaps {
		data, err := encoder.Encode(snap)
		if err != nil {
			return fmt.Errorf("could not encode snapshot of validator %d: %w", snap.ValidatorID, err)
		}
		file := filepath.Join(dir, fmt.Sprintf("validator-%d.%s", snap.ValidatorID, format))
		err = os.WriteFile(file, data, 0o644)
		if err != nil {
			return fmt.Errorf("could not write %s: %w", file, err)
		}
	}
	return nil
}

// readSnapshot reads an exported snapshot. JSON files are imported as
// formal documents, so every missing or mistyped entry is reported.
func readSnapshot(file string) (*formal.Snapshot, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(file), "."+formatCBOR) {
		encoder, err := cbor.NewEncoder()
		if err != nil {
			return nil, err
		}
		var snap formal.Snapshot
		err = encoder.Decode(data, &snap)
		if err != nil {
			return nil, fmt.Errorf("could not decode %s: %w", file, err)
		}
		return &snap, nil
	}
	doc, err := formal.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", file, err)
	}
	return formal.Decode(doc)
}
