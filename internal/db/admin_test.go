package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminMux(t *testing.T) (*DB, *http.ServeMux) {
	t.Helper()
	store := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, store.AttachAdminRoutes(mux))
	return store, mux
}

// localRequest builds a request from loopback, which the debug pages admit.
func localRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

func TestAttachAdminRoutes_TailSQL(t *testing.T) {
	t.Parallel()
	_, mux := adminMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localRequest("/debug/tailsql/"))
	assert.NotEqual(t, http.StatusNotFound, w.Code, "/debug/tailsql/ should be registered")
	assert.NotEqual(t, http.StatusForbidden, w.Code, "loopback should reach the console")
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	t.Parallel()
	store, mux := adminMux(t)

	r, err := store.CreateRun(RunSuppress, "readings.txt")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localRequest("/debug/backup"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Greater(t, len(data), 16)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))

	// The backup is a working copy of the store.
	path := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(path, data, 0644))
	restored, err := NewDB(path)
	require.NoError(t, err)
	defer restored.Close()
	got, err := restored.GetRun(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "readings.txt", got.Source)
}
