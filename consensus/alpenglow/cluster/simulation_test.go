package cluster_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/cluster"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/module/util"
	bstorage "github.com/onflow/alpenglow/storage/badger"
	"github.com/onflow/alpenglow/utils/unittest"
)

func TestRunHonestScenario(t *testing.T) {
	c, ctx := startCluster(t, 4)
	scenario := cluster.Scenario{Ticks: 60, BlockInterval: 5, MessagesPerTick: 4, Seed: 1}

	out, err := c.Run(ctx, scenario, util.LogProgress(unittest.Logger(), "simulation", 60, 4))
	require.NoError(t, err)
	assert.Equal(t, cluster.Outcome{Proposed: 12, Certified: 12}, out)

	reports, err := c.Reports(ctx)
	require.NoError(t, err)
	var delivered uint64
	for _, report := range reports {
		assert.Equal(t, uint64(60), report.Clock)
		assert.Equal(t, 12, report.FinalizedBlocks)
		assert.Equal(t, model.Running, report.SystemState)
		delivered += report.Metrics.MessagesProcessed
	}
	assert.Greater(t, delivered, uint64(200))
}

func TestRunSkipsByzantineLeaders(t *testing.T) {
	c, ctx := startCluster(t, 4)
	scenario := cluster.Scenario{Ticks: 40, BlockInterval: 5, Byzantine: []model.ValidatorID{1}, Seed: 2}

	out, err := c.Run(ctx, scenario, nil)
	require.NoError(t, err)
	assert.Equal(t, cluster.Outcome{Proposed: 6, Certified: 6, Skipped: 2}, out)

	snaps, err := c.Export(ctx)
	require.NoError(t, err)
	for _, snap := range snaps {
		require.Len(t, snap.VotorState.Finalized, 6)
		for _, f := range snap.VotorState.Finalized {
			assert.Equal(t, model.SlowCertificate, f.Type)
			assert.NotEqual(t, model.ValidatorID(1), f.Block.Proposer)
		}
	}
}

func TestRunWithoutQuorum(t *testing.T) {
	c, ctx := startCluster(t, 4)
	scenario := cluster.Scenario{Ticks: 10, BlockInterval: 5, Byzantine: []model.ValidatorID{0, 1}}

	out, err := c.Run(ctx, scenario, nil)
	require.NoError(t, err)
	assert.Equal(t, cluster.Outcome{Uncertified: 2}, out)
}

func TestRunCheckpoints(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		snapshots := bstorage.NewSnapshots(db)
		c, ctx := startCluster(t, 4, cluster.WithSnapshots(snapshots))

		out, err := c.Run(ctx, cluster.Scenario{Ticks: 30, BlockInterval: 3, CheckpointInterval: 10}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, out.Checkpoints)

		clocks, err := snapshots.Clocks(3)
		require.NoError(t, err)
		assert.Equal(t, []uint64{10, 20, 30}, clocks)
	})
}

func TestRunRejectsBadScenario(t *testing.T) {
	c, ctx := startCluster(t, 4)

	_, err := c.Run(ctx, cluster.Scenario{Ticks: 10}, nil)
	require.Error(t, err)

	_, err = c.Run(ctx, cluster.Scenario{Ticks: 10, BlockInterval: 2, CheckpointInterval: 5}, nil)
	require.Error(t, err)

	_, err = c.Run(ctx, cluster.Scenario{Ticks: 10, BlockInterval: 2, Byzantine: []model.ValidatorID{9}}, nil)
	require.ErrorIs(t, err, cluster.ErrUnknownValidator)
}
