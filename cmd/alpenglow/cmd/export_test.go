package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/node"
	"github.com/onflow/alpenglow/utils/unittest"
)

func snapshots(t *testing.T) []*formal.Snapshot {
	var out []*formal.Snapshot
	for i := 0; i < 2; i++ {
		n, err := node.New(unittest.Logger(), model.ValidatorID(i), unittest.ConfigFixture(4), node.DefaultParameters())
		require.NoError(t, err)
		require.NoError(t, n.Initialize())
		for j := 0; j < 5; j++ {
			require.NoError(t, n.Tick())
		}
		out = append(out, n.ExportFormalState())
	}
	return out
}

func TestExportRoundTrip(t *testing.T) {
	for _, format := range []string{formatJSON, formatCBOR} {
		format := format
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			snaps := snapshots(t)
			require.NoError(t, writeSnapshots(dir, format, snaps))

			for _, expected := range snaps {
				file := filepath.Join(dir, fmt.Sprintf("validator-%d.%s", expected.ValidatorID, format))
				actual, err := readSnapshot(file)
				require.NoError(t, err)
				if diff := cmp.Diff(expected, actual, cmpopts.EquateEmpty()); diff != "" {
					t.Fatalf("read snapshot differs (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestReadMalformedDocument(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"schemaVersion": "alpenglow-integration/1"}`), 0o600))

	_, err := readSnapshot(file)
	require.True(t, formal.IsImportError(err))
}

func TestUnknownExportFormat(t *testing.T) {
	_, err := encoderFor("xml")
	require.Error(t, err)
	require.Error(t, writeSnapshots(t.TempDir(), "xml", snapshots(t)))
}
