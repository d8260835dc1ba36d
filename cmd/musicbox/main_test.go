package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/musicbox/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	// Process environment is ignored to keep tests isolated
	noEnv := func(string) string { return "" }
	getwd := func() (string, error) { return t.TempDir(), nil }

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		err := run(ctx, noEnv, getwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--database", pg.DSN,
			"--access-secret", "access",
			"--refresh-secret", "refresh",
			"--s3-bucket", "music",
			"--s3-endpoint", "http://localhost:9",
			"--s3-access-key", "key",
			"--s3-secret-key", "secret",
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("stop with config error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		// Try to run without refresh secret. Must fail
		err := run(ctx, noEnv, getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--access-secret", "access",
			"--s3-bucket", "music",
		})

		require.Error(t, err, "on incorrect config should return error")
	})

	t.Run("stop with srv error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		// Address is busy by the first server
		busyCtx, busyCancel := context.WithCancel(context.Background())
		busy := make(chan error, 1)
		args := []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--access-secret", "access",
			"--refresh-secret", "refresh",
			"--s3-bucket", "music",
			"--s3-endpoint", "http://localhost:9",
			"--s3-access-key", "key",
			"--s3-secret-key", "secret",
		}
		go func() { busy <- run(busyCtx, noEnv, getwd, args) }()
		t.Cleanup(func() {
			busyCancel()
			<-busy
		})
		time.Sleep(300 * time.Millisecond)

		err := run(ctx, noEnv, getwd, args)

		require.Error(t, err, "server must fail if address is in use")
	})
}
