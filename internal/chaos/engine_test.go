package chaos

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func report(i int) schema.ExecutionReport {
	return schema.ExecutionReport{
		ClientOrderID: "o1",
		ExecutionID:   fmt.Sprintf("e%d", i),
		Delta:         schema.DeltaFill,
		TimestampNs:   int64(i) * 100,
	}
}

func runAll(e *Engine, n int) []schema.ExecutionReport {
	var out []schema.ExecutionReport
	for i := 0; i < n; i++ {
		out = append(out, e.Process(report(i))...)
	}
	return append(out, e.Flush()...)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewEngine(Config{DropRate: 1.5})
	require.Error(t, err)
	_, err = NewEngine(Config{DuplicateRate: -0.1})
	require.Error(t, err)
	_, err = NewEngine(Config{MaxDelay: -1})
	require.Error(t, err)
}

func TestPassThroughWithoutFaults(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1})
	require.NoError(t, err)

	out := runAll(e, 5)
	require.Len(t, out, 5)
	for i, rep := range out {
		require.Equal(t, fmt.Sprintf("e%d", i), rep.ExecutionID)
	}
}

func TestDuplicateEmitsSameReportTwice(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, DuplicateRate: 1})
	require.NoError(t, err)

	out := e.Process(report(0))
	require.Len(t, out, 2)
	require.Equal(t, out[0], out[1])
}

func TestDropRateOneDropsEverything(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)

	require.Empty(t, runAll(e, 10))
}

func TestReorderWindowPreservesSet(t *testing.T) {
	e, err := NewEngine(Config{Seed: 42, ReorderWindow: 3})
	require.NoError(t, err)

	out := runAll(e, 10)
	require.Len(t, out, 10)
	seen := map[string]bool{}
	for _, rep := range out {
		seen[rep.ExecutionID] = true
	}
	require.Len(t, seen, 10)
}

func TestSameSeedSameSchedule(t *testing.T) {
	cfg := Config{Seed: 99, DropRate: 0.3, DuplicateRate: 0.3, ReorderWindow: 4}
	a, err := NewEngine(cfg)
	require.NoError(t, err)
	b, err := NewEngine(cfg)
	require.NoError(t, err)

	require.Equal(t, runAll(a, 20), runAll(b, 20))
}
