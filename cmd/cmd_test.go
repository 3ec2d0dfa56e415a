package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/protocol"
	"github.com/clickrtraining/clickrtraining/internal/server"
	"github.com/clickrtraining/clickrtraining/internal/signaling"
	"github.com/clickrtraining/clickrtraining/internal/ui"
)

func testHostConfig() *config.HostConfig {
	return &config.HostConfig{Addr: "127.0.0.1", Port: 0}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHostOptions_Validate(t *testing.T) {
	require.NoError(t, fx.ValidateApp(hostOptions(testHostConfig(), discardLogger())))
}

func startHost(t *testing.T) *server.Server {
	t.Helper()
	var srv *server.Server
	app := fxtest.New(t, hostOptions(testHostConfig(), discardLogger()), fx.Populate(&srv))
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return srv
}

func TestClickCommand_ReachesListener(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prevLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	var out bytes.Buffer
	prevOut := ui.Out
	ui.Out = &out
	t.Cleanup(func() { ui.Out = prevOut })

	srv := startHost(t)
	port := srv.Addr().(*net.TCPAddr).Port

	conn, _, err := websocket.DefaultDialer.Dial(protocol.AttachURL(protocol.Endpoint{
		Protocol: "ws", Host: "127.0.0.1", Port: port,
	}, "kitchen", ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome protocol.Frame
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, protocol.FrameWelcome, welcome.Type)

	rootCmd.SetArgs([]string{"click",
		"--protocol", "http",
		"--addr", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--id", "kitchen",
		"--sound", "bell",
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var click protocol.Frame
	require.NoError(t, conn.ReadJSON(&click))
	assert.Equal(t, protocol.FrameClick, click.Type)
	assert.Equal(t, "bell", click.Sound)
	assert.Contains(t, out.String(), "bell sent to room")
}

func TestClickCommand_ReportsUnreachableHost(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prevLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	var out bytes.Buffer
	prevOut := ui.Out
	ui.Out = &out
	t.Cleanup(func() { ui.Out = prevOut })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	rootCmd.SetArgs([]string{"click",
		"--protocol", "http",
		"--addr", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--id", "kitchen",
		"--timeout", "2s",
	})
	err = rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)

	var reported reportedError
	require.ErrorAs(t, err, &reported)
	assert.Contains(t, out.String(), ui.IconError)
	assert.Contains(t, out.String(), err.Error())
}

func TestPrintState(t *testing.T) {
	var out bytes.Buffer
	prevOut := ui.Out
	ui.Out = &out
	t.Cleanup(func() { ui.Out = prevOut })

	printState(signaling.StateStreaming, "kitchen", nil)
	printState(signaling.StateRetrying, "kitchen", errors.New("connection refused"))
	printState(signaling.StateRetrying, "kitchen", nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], ui.IconRoom)
	assert.Contains(t, lines[0], "kitchen")
	assert.Contains(t, lines[1], ui.IconError)
	assert.Contains(t, lines[1], "connection refused")
	assert.Contains(t, lines[2], ui.IconWaiting)
	assert.NotContains(t, lines[2], ui.IconError)
}
