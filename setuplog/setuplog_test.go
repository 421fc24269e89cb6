package setuplog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRetainsEntries(t *testing.T) {
	setupLog := New()

	logger := logrus.New()
	logger.AddHook(setupLog)

	logger.Info("the first line")
	logger.Warn("the second line")

	entries := setupLog.RecentEntries()
	require.Len(t, entries, 2)
	require.Contains(t, entries[0], "the first line")
	require.Contains(t, entries[1], "the second line")
}

func TestDropsOldestBeyondCapacity(t *testing.T) {
	setupLog := New()
	setupLog.capacity = 3

	logger := logrus.New()
	logger.AddHook(setupLog)

	logger.Info("one")
	logger.Info("two")
	logger.Info("three")
	logger.Info("four")

	entries := setupLog.RecentEntries()
	require.Len(t, entries, 3)
	require.Contains(t, entries[0], "two")
}
