package uds

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type framePayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := framePayload{Name: "tick", Value: "42000.5"}
	done := make(chan error, 1)
	go func() {
		done <- WriteFrame(client, time.Now().Add(time.Second), want)
	}()

	var got framePayload
	require.NoError(t, ReadFrame(server, time.Now().Add(time.Second), &got))
	require.NoError(t, <-done)
	require.Equal(t, want, got)
}

func TestReadFrameDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var got framePayload
	err := ReadFrame(server, time.Now().Add(20*time.Millisecond), &got)
	require.Error(t, err)
	netErr, ok := err.(net.Error)
	require.True(t, ok)
	require.True(t, netErr.Timeout())
}
