package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/common"
	"github.com/oshokin/catpoint/internal/service/server"
)

// panelServer is a running panel server.
type panelServer struct {
	// address is the gRPC listen address.
	address string
	// configPath is the settings file the server was started with.
	configPath string
	// stop shuts the server down and waits for it.
	stop func()
}

// writeConfig saves cfg to a temporary settings file.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, cfg))

	return path
}

// startServer runs server.Run with the given settings until stop is called.
func startServer(t *testing.T, cfg *config.Config) *panelServer {
	t.Helper()

	configPath := writeConfig(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:    configPath,
			ListenAddress: "127.0.0.1:0",
			Ready:         func(address string) { ready <- address },
		})
	}()

	var address string
	select {
	case address = <-ready:
	case err := <-done:
		cancel()
		require.FailNow(t, "server exited early", "%v", err)
	case <-time.After(5 * time.Second):
		cancel()
		require.FailNow(t, "server did not start")
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}

		stopped = true

		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "server did not stop")
		}
	}

	t.Cleanup(stop)

	return &panelServer{
		address:    address,
		configPath: configPath,
		stop:       stop,
	}
}

// dial connects a client to the panel server.
func dial(t *testing.T, address string) *common.Client {
	t.Helper()

	client, err := common.Dial(context.Background(), address, common.WithCallTimeout(5*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// labelService fakes the HTTP labeling service; it reports a cat while cat is set.
func labelService(t *testing.T, cat *atomic.Bool) string {
	t.Helper()

	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		labels := []map[string]any{{"name": "sofa", "confidence": 97.5}}
		if cat.Load() {
			labels = append(labels, map[string]any{"name": "cat", "confidence": 88.0})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"labels": labels})
	}))
	t.Cleanup(service.Close)

	return service.URL
}

// pngImage encodes a small blank PNG.
func pngImage(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	return buf.Bytes()
}

// pngFile writes a small blank PNG to a temporary file.
func pngFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "camera.png")
	require.NoError(t, os.WriteFile(path, pngImage(t), 0o600))

	return path
}
