package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evervolv/evsettings/internal/engine"
	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/settings"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Handler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := engine.NewProvider(engine.Options{
		DataDir:   t.TempDir(),
		Resources: engine.DefaultResources(),
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(func() { _ = store.Close() })

	node := filepath.Join(t.TempDir(), "disable_keys")
	require.NoError(t, os.WriteFile(node, []byte("0"), 0o644))
	hw := hardware.NewService(map[hardware.Feature]hardware.Toggle{
		hardware.KeyDisable: hardware.SysfsToggle{Path: node},
	}, zerolog.Nop())

	h := &Handler{
		Store:    store,
		Hardware: hardware.NewManager(hw, zerolog.Nop()),
		Log:      zerolog.Nop(),
	}
	r := gin.New()
	r.Use(CORS())
	h.Register(r)
	return r, h, node
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPutGetDelete(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := do(r, http.MethodPut, "/api/users/0/system/greeting", map[string]string{"value": "hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/users/0/system/greeting", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{"name": "greeting", "value": "hi"}, got)

	w = do(r, http.MethodDelete, "/api/users/0/system/greeting", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/users/0/system/greeting", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutEmptyValue(t *testing.T) {
	r, h, _ := setupTestRouter(t)

	w := do(r, http.MethodPut, "/api/users/0/secure/empty", map[string]string{"value": ""})
	require.Equal(t, http.StatusOK, w.Code)
	v, found, err := h.Store.Call(context.Background(), schema.Secure, "empty", schema.UserSystem)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, v)

	w = do(r, http.MethodPut, "/api/users/0/secure/missing", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestList(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := do(r, http.MethodGet, "/api/users/0/system", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, "0", all[settings.StatusBarQuickQSPulldown])

	w = do(r, http.MethodGet, "/api/users/0/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/api/users/me/system", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutWithValidation(t *testing.T) {
	r, _, _ := setupTestRouter(t)
	path := "/api/users/0/system/" + settings.StatusBarQuickQSPulldown + "?validate=true"

	w := do(r, http.MethodPut, path, map[string]string{"value": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, path, map[string]string{"value": "2"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/api/users/0/system/no_such_setting?validate=true", map[string]string{"value": "2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Without validation anything goes
	w = do(r, http.MethodPut, "/api/users/0/system/"+settings.StatusBarQuickQSPulldown, map[string]string{"value": "5"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidate(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := do(r, http.MethodPost, "/api/validate/system", map[string]string{
		settings.StatusBarQuickQSPulldown: "1",
		settings.LockscreenRotation:       "maybe",
		"no_such_setting":                 "x",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]validity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, validity{Known: true, Valid: true}, out[settings.StatusBarQuickQSPulldown])
	assert.Equal(t, validity{Known: true, Valid: false}, out[settings.LockscreenRotation])
	assert.Equal(t, validity{Known: false, Valid: false}, out["no_such_setting"])
}

func TestHardware(t *testing.T) {
	r, _, node := setupTestRouter(t)

	w := do(r, http.MethodGet, "/api/hardware", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Supported int            `json:"supported"`
		Features  []featureState `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int(hardware.KeyDisable), resp.Supported)
	assert.Len(t, resp.Features, len(hardware.Features))

	w = do(r, http.MethodPut, "/api/hardware/FEATURE_KEY_DISABLE", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	raw, err := os.ReadFile(node)
	require.NoError(t, err)
	assert.Equal(t, "1", string(bytes.TrimSpace(raw)))

	w = do(r, http.MethodPut, "/api/hardware/FEATURE_TOUCH_HOVERING", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPut, "/api/hardware/FEATURE_VIBRATOR", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/api/hardware/NOPE", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVibratorAndGestures(t *testing.T) {
	r, _, _ := setupTestRouter(t)
	w := do(r, http.MethodGet, "/api/vibrator", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/gestures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gestures":[]}`, w.Body.String())

	dir := t.TempDir()
	level := filepath.Join(dir, "vtg_level")
	require.NoError(t, os.WriteFile(level, []byte("30"), 0o644))
	tap := filepath.Join(dir, "double_tap")
	require.NoError(t, os.WriteFile(tap, []byte("0"), 0o644))
	hw := hardware.NewService(nil, zerolog.Nop(),
		hardware.WithVibrator(hardware.SysfsVibrator{Path: level, Default: 30, Min: 0, Max: 60, Warning: 50}),
		hardware.WithGestures(hardware.SysfsGestures{
			{Gesture: hardware.Gesture{ID: 1, Name: "double_tap", Keycode: 251}, Path: tap},
		}),
	)
	h := &Handler{Hardware: hardware.NewManager(hw, zerolog.Nop()), Log: zerolog.Nop()}
	r2 := gin.New()
	h.Register(r2)

	w = do(r2, http.MethodGet, "/api/vibrator", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":30,"default":30,"min":0,"max":60,"warning":50}`, w.Body.String())

	w = do(r2, http.MethodPut, "/api/vibrator", map[string]int{"intensity": 61})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r2, http.MethodPut, "/api/vibrator", map[string]int{"intensity": 45})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	w = do(r2, http.MethodGet, "/api/gestures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gestures":[{"id":1,"name":"double_tap","keycode":251}]}`, w.Body.String())

	w = do(r2, http.MethodPut, "/api/gestures/2", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r2, http.MethodPut, "/api/gestures/x", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r2, http.MethodPut, "/api/gestures/1", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	raw, err := os.ReadFile(tap)
	require.NoError(t, err)
	assert.Equal(t, "1", string(raw))
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := setupTestRouter(t)
	w := do(r, http.MethodOptions, "/api/users/0/system", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
