//go:build integration

package control

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-fix/lifecycle"
	"github.com/c360/semstreams-fix/natsclient"
	mocks "github.com/c360/semstreams-fix/testutil"
)

func TestIntegrationControlService(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithFastStartup())
	nc := tc.Client.Conn()

	ctl := lifecycle.New(mocks.NewFakeEngine())
	svc := NewService(Config{Prefix: "fix.control"}, ctl, nil, nil)
	require.NoError(t, svc.Run(nc))
	t.Cleanup(func() { _ = svc.Stop() })

	request := func(subject string, body []byte) Response {
		msg, err := nc.Request(subject, body, 2*time.Second)
		require.NoError(t, err)
		require.Empty(t, msg.Header.Get(micro.ErrorCodeHeader))
		var resp Response
		require.NoError(t, json.Unmarshal(msg.Data, &resp))
		return resp
	}

	assert.Equal(t, "Successfully started", request("fix.control.start", nil).Message)
	assert.True(t, ctl.IsRunning())
	assert.Equal(t, "Already running", request("fix.control.start", []byte(`{"stop_after":0}`)).Message)
	assert.Equal(t, "Successfully stopped", request("fix.control.stop", nil).Message)
	assert.Equal(t, "Already stopped", request("fix.control.stop", nil).Message)

	msg, err := nc.Request("fix.control.start", []byte(`not json`), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, CodeInternal, msg.Header.Get(micro.ErrorCodeHeader))
}
