package service

import (
	"MediaVault/config"
	"MediaVault/internal/testutil"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImportSourceURL(t *testing.T) {
	testutil.Setup(t)

	cases := []struct {
		url     string
		wantErr bool
	}{
		{"ftp://example.com/a.png", true},
		{"http:///a.png", true},
		{"http://localhost/a.png", true},
		{"http://127.0.0.1/a.png", true},
		{"http://10.0.0.8/a.png", true},
		{"http://169.254.169.254/latest", true},
		{"http://printer.local/a.png", true},
		{"https://93.184.216.34/a.png", false},
	}
	for _, tc := range cases {
		err := ValidateImportSourceURL(tc.url)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrSourceRejected, tc.url)
		} else {
			assert.NoError(t, err, tc.url)
		}
	}

	config.AppConfig.ImportAllowedHosts = []string{".example.com"}
	assert.ErrorIs(t, ValidateImportSourceURL("https://93.184.216.34/a.png"), ErrSourceRejected)

	config.AppConfig.ImportAllowedHosts = nil
	config.AppConfig.ImportAllowPrivate = true
	assert.NoError(t, ValidateImportSourceURL("http://127.0.0.1:8080/a.png"))
}

func TestHostAllowed(t *testing.T) {
	assert.True(t, hostAllowed("anything.io", nil))
	assert.True(t, hostAllowed("cdn.example.com", []string{".example.com"}))
	assert.True(t, hostAllowed("Example.com", []string{"example.com"}))
	assert.False(t, hostAllowed("example.com.evil.io", []string{"example.com"}))
	assert.False(t, isBlockedIP(net.ParseIP("8.8.8.8")))
	assert.True(t, isBlockedIP(net.ParseIP("192.168.1.1")))
	assert.True(t, isBlockedIP(nil))
}

func TestFetchRemote(t *testing.T) {
	testutil.Setup(t)
	config.AppConfig.ImportAllowPrivate = true

	payload := strings.Repeat("x", 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write([]byte(payload))
		case "/named":
			w.Header().Set("Content-Disposition", `attachment; filename="holiday.jpg"`)
			_, _ = w.Write([]byte("abc"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetched, err := FetchRemote(context.Background(), server.URL+"/photo.png", 4096)
	require.NoError(t, err)
	defer fetched.Remove()
	assert.Equal(t, "photo.png", fetched.Name)
	assert.Equal(t, "image/png", fetched.ContentType)
	assert.Equal(t, int64(2048), fetched.Size)
	data, err := os.ReadFile(fetched.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	named, err := FetchRemote(context.Background(), server.URL+"/named", 0)
	require.NoError(t, err)
	assert.Equal(t, "holiday.jpg", named.Name)
	named.Remove()
	_, err = os.Stat(named.Path)
	assert.True(t, os.IsNotExist(err))

	_, err = FetchRemote(context.Background(), server.URL+"/photo.png", 1024)
	assert.ErrorIs(t, err, ErrSourceRejected)

	_, err = FetchRemote(context.Background(), server.URL+"/missing", 0)
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchRemoteRefusesRebinding(t *testing.T) {
	testutil.Setup(t)

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("secret"))
	}))
	defer server.Close()
	_, port, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)

	lookups := 0
	prev := lookupIPAddr
	lookupIPAddr = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		lookups++
		if lookups == 1 {
			return []net.IPAddr{{IP: net.ParseIP("203.0.113.10")}}, nil
		}
		return []net.IPAddr{{IP: net.ParseIP("127.0.0.1")}}, nil
	}
	t.Cleanup(func() { lookupIPAddr = prev })

	_, err = FetchRemote(context.Background(), "http://media.example.test:"+port+"/a.png", 1024)
	assert.ErrorIs(t, err, ErrSourceRejected)
	assert.GreaterOrEqual(t, lookups, 2)
	assert.Zero(t, hits)
}

func TestDialPublicRefusesPrivateTargets(t *testing.T) {
	testutil.Setup(t)
	dial := dialPublic(&net.Dialer{})

	_, err := dial(context.Background(), "tcp", "127.0.0.1:80")
	assert.ErrorIs(t, err, ErrSourceRejected)
	_, err = dial(context.Background(), "tcp", "[::1]:80")
	assert.ErrorIs(t, err, ErrSourceRejected)
	_, err = dial(context.Background(), "tcp", "10.1.2.3:443")
	assert.ErrorIs(t, err, ErrSourceRejected)
}
