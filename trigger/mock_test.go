package trigger

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockTriggerReportsPresses(t *testing.T) {
	trigger := NewMockTrigger(&MockTriggerConfig{
		Listen: "localhost:0",
	})

	require.NoError(t, trigger.Start())

	defer func() {
		require.NoError(t, trigger.Stop())
	}()

	url := fmt.Sprintf("http://%v/press", trigger.listener.Addr())

	go func() {
		res, err := http.Post(url, "", nil)
		if err == nil {
			_ = res.Body.Close()
		}
	}()

	select {
	case <-trigger.Presses():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a press")
	}
}

func TestMockTriggerRejectsGet(t *testing.T) {
	trigger := NewMockTrigger(&MockTriggerConfig{
		Listen: "localhost:0",
	})

	require.NoError(t, trigger.Start())

	defer func() {
		require.NoError(t, trigger.Stop())
	}()

	url := fmt.Sprintf("http://%v/press", trigger.listener.Addr())

	res, err := http.Get(url)
	require.NoError(t, err)

	defer res.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
