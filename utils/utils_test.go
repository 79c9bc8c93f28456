package utils

import (
	"MediaVault/config"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	saved := config.AppConfig
	mutate(&config.AppConfig)
	t.Cleanup(func() { config.AppConfig = saved })
}

func TestTokenRoundTrip(t *testing.T) {
	withConfig(t, func(c *config.Config) {
		c.JWTSecret = "round-trip"
		c.JWTTTL = time.Hour
	})

	token, err := GenerateToken(42, "alice")
	require.NoError(t, err)
	claims, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserId)
	assert.Equal(t, "alice", claims.Username)

	config.AppConfig.JWTSecret = "rotated"
	_, err = VerifyToken(token)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"beach.jpg":             "beach.jpg",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\clip.mp4`:  "clip.mp4",
		"  spaced.png  ":        "spaced.png",
		"tab\tand\nnewline.png": "tabandnewline.png",
		"":                      "unnamed",
		"dir/":                  "dir",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}

	long := strings.Repeat("a", 300) + ".jpeg"
	got := SanitizeFilename(long)
	assert.Len(t, got, 255)
	assert.True(t, strings.HasSuffix(got, ".jpeg"))
}

func TestSanitizeHeaderFilename(t *testing.T) {
	assert.Equal(t, "download", SanitizeHeaderFilename("  "))
	assert.Equal(t, "evilname.png", SanitizeHeaderFilename("evil\r\n\"name.png"))
}

func TestStoredName(t *testing.T) {
	a := StoredName("Holiday.JPG")
	b := StoredName("Holiday.JPG")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.False(t, strings.Contains(StoredName("noext"), "."))
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memCache) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if raw, ok := m.items[key]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, err
		}
	}
	n++
	raw, _ := json.Marshal(n)
	m.items[key] = raw
	return n, nil
}

func TestAssetListCache(t *testing.T) {
	mem := &memCache{items: map[string][]byte{}}
	SetCache(mem)
	t.Cleanup(InitCacheManager)
	ctx := context.Background()

	type query struct{ Kind string }
	gen1, ok := AssetListGeneration(ctx, 1)
	require.True(t, ok)
	gen2, ok := AssetListGeneration(ctx, 2)
	require.True(t, ok)
	require.NoError(t, SetAssetListToCache(ctx, 1, gen1, query{"image"}, &AssetListCache{Total: 3}, time.Minute))
	require.NoError(t, SetAssetListToCache(ctx, 2, gen2, query{"image"}, &AssetListCache{Total: 5}, time.Minute))

	got, ok := GetAssetListFromCache(ctx, 1, gen1, query{"image"})
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Total)
	_, ok = GetAssetListFromCache(ctx, 1, gen1, query{"video"})
	assert.False(t, ok)

	require.NoError(t, InvalidateAssetListCache(ctx, 1))
	next, ok := AssetListGeneration(ctx, 1)
	require.True(t, ok)
	assert.NotEqual(t, gen1, next)
	_, ok = GetAssetListFromCache(ctx, 1, next, query{"image"})
	assert.False(t, ok)
	_, ok = GetAssetListFromCache(ctx, 2, gen2, query{"image"})
	assert.True(t, ok)
}

func TestAssetListCacheIgnoresPageComputedBeforeInvalidation(t *testing.T) {
	SetCache(&memCache{items: map[string][]byte{}})
	t.Cleanup(InitCacheManager)
	ctx := context.Background()

	type query struct{ State string }
	gen, ok := AssetListGeneration(ctx, 1)
	require.True(t, ok)
	// a mutation lands while the page is being read from the database
	require.NoError(t, InvalidateAssetListCache(ctx, 1))
	require.NoError(t, SetAssetListToCache(ctx, 1, gen, query{"trashed"}, &AssetListCache{Total: 1}, time.Minute))

	current, ok := AssetListGeneration(ctx, 1)
	require.True(t, ok)
	_, ok = GetAssetListFromCache(ctx, 1, current, query{"trashed"})
	assert.False(t, ok)
}

func TestAssetListCacheDisabled(t *testing.T) {
	SetCache(noopCache{})
	t.Cleanup(InitCacheManager)
	_, ok := AssetListGeneration(context.Background(), 1)
	assert.False(t, ok)
}

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withConfig(t, func(c *config.Config) { c.AdminUsers = []string{"Root"} })

	serve := func(username string) int {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if username != "" {
				c.Set("username", username)
			}
		}, AdminMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, serve("root"))
	assert.Equal(t, http.StatusForbidden, serve("bob"))
	assert.Equal(t, http.StatusForbidden, serve(""))
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withConfig(t, func(c *config.Config) { c.JWTSecret = "mw" })
	token, err := GenerateToken(7, "eve")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("user_id")})
	})
	for header, want := range map[string]int{
		"":                http.StatusUnauthorized,
		"Token " + token:  http.StatusUnauthorized,
		"Bearer garbage":  http.StatusUnauthorized,
		"bearer " + token: http.StatusOK,
		"Bearer " + token: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "header %q", header)
	}
}

func TestErrorResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	decode := func(w *httptest.ResponseRecorder) map[string]interface{} {
		body := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	BadRequest(c, "invalid asset id")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(w)
	assert.Equal(t, "bad_request", body["error"])
	assert.Equal(t, "invalid asset id", body["msg"])

	r := gin.New()
	r.GET("/admin", AdminMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode(w)["error"])

	r = gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body = decode(w)
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, float64(-1), body["code"])
}
