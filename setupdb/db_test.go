package setupdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestOpenCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	db, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, db.Close())
}

func TestWifiConnectionAbsentByDefault(t *testing.T) {
	db := openTestDB(t)

	connection, err := db.GetWifiConnection()
	require.NoError(t, err)
	require.Nil(t, connection)
}

func TestWifiConnectionRoundtrip(t *testing.T) {
	db := openTestDB(t)

	err := db.SetWifiConnection(&WifiConnection{
		Ssid: "Home",
		Psk:  "secret123",
	})
	require.NoError(t, err)

	connection, err := db.GetWifiConnection()
	require.NoError(t, err)
	require.NotNil(t, connection)
	require.Equal(t, "Home", connection.Ssid)
	require.Equal(t, "secret123", connection.Psk)
}

func TestWifiConnectionOverwrite(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SetWifiConnection(&WifiConnection{Ssid: "Old", Psk: "old"}))
	require.NoError(t, db.SetWifiConnection(&WifiConnection{Ssid: "New", Psk: "new"}))

	connection, err := db.GetWifiConnection()
	require.NoError(t, err)
	require.Equal(t, "New", connection.Ssid)
}
