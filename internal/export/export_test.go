package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/rank"
)

func sampleRun() *store.Run {
	var r rank.Ranked
	r.Origin, r.Destination = "JFK", "LIS"
	r.StartDate, r.EndDate = "2026-11-01", "2026-11-08"
	r.TotalCost = rank.Known(640)
	r.Score = 0.8
	return &store.Run{
		ID: 12, Origin: "JFK", StartDate: "2026-11-01", EndDate: "2026-11-08", Currency: "USD",
		Ranked: []rank.Ranked{r},
	}
}

func TestSnapshot(t *testing.T) {
	data, err := Snapshot(sampleRun())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "origin,destination,dates"))
	assert.Contains(t, lines[1], "LIS")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "runs/jfk/12_2026-11-01_2026-11-08.csv", ObjectKey("runs/", sampleRun()))
	assert.Equal(t, "jfk/12_2026-11-01_2026-11-08.csv", ObjectKey("", sampleRun()))
}

func TestNewUploaderRequiresCredentials(t *testing.T) {
	_, err := NewUploader(config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewUploader(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	defer srv.Close()

	u, err := NewUploader(config.MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "destradar",
		Prefix:    "runs/",
	})
	require.NoError(t, err)

	key, err := u.Upload(context.Background(), sampleRun())
	require.NoError(t, err)
	assert.Equal(t, "runs/jfk/12_2026-11-01_2026-11-08.csv", key)
	assert.Equal(t, []string{"/destradar/runs/jfk/12_2026-11-01_2026-11-08.csv"}, puts)
}
