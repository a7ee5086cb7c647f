// api/handlers/setup_integration_test.go
package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-cms/api"
	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

const testSecret = "test_secret_key_for_integration_tests_1234567890"

const testCMSDocument = `{
  "title": "Integration CMS",
  "tables": {
    "articles": {
      "label": "Articles",
      "fields": {
        "title": {"type": "text", "validation": {"required": true, "maxLength": 20}},
        "slug": {"type": "string", "validation": {"required": true}},
        "body": {"type": "textarea", "ui": {"template": "rich-text"}},
        "views": {"type": "number"},
        "cover": {"type": "file", "ui": {"template": "image-uploader"}, "validation": {"fileTypes": ["png", "jpg"], "maxSize": 0.001}},
        "editor_note": {"type": "text", "hidden": true}
      },
      "detailView": {"tabs": [
        {"name": "Content", "fields": ["title", "slug", "body"]},
        {"name": "Media", "fields": ["cover", "views"]}
      ]}
    },
    "broken": {
      "fields": {"title": {"type": "text"}},
      "detailView": {"tabs": [{"name": "Main", "fields": ["title", "ghost"]}]}
    },
    "agents": {
      "label": "Agents",
      "fields": {
        "name": {"type": "string", "validation": {"required": true, "maxLength": 40}},
        "temperature": {"type": "number"},
        "api_key": {"type": "string", "hidden": true}
      }
    }
  }
}`

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	cfg    *config.Config
}

// setupTestServer creates a test server with a temp DB and the test CMS document.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir := t.TempDir()
	cfg := &config.Config{
		ServerPort:     "0",
		JWTSecret:      testSecret,
		JWTExpiration:  5 * time.Minute,
		MetadataDbDir:  tempDir,
		MetadataDbFile: "test_metadata.db",
		UploadDir:      t.TempDir(),
	}

	db, err := storage.ConnectMetadataDB(cfg)
	require.NoError(t, err, "Failed to connect to test database")

	doc, err := cmsconfig.Parse([]byte(testCMSDocument), "json")
	require.NoError(t, err)

	server := httptest.NewServer(api.SetupRouter(db, cfg, form.NewCompiler(doc)))
	t.Cleanup(func() {
		server.Close()
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return &testEnv{server: server, db: db, cfg: cfg}
}

// do sends a JSON request, optionally authenticated, and returns status and body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	if body == nil {
		return e.doRaw(t, method, path, token, nil)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return e.doRaw(t, method, path, token, raw)
}

// doRaw sends body bytes as-is, for requests that are not valid JSON.
func (e *testEnv) doRaw(t *testing.T, method, path, token string, body []byte) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, raw
}

// login signs up a fresh user and returns a bearer token.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/auth/signup", "", models.SignupRequest{
		Username: "editor", Email: "editor@example.com", Password: "StrongPassword123!",
	})
	require.Equal(t, http.StatusCreated, status)

	status, raw := e.do(t, http.MethodPost, "/auth/login", "", models.LoginRequest{
		Email: "editor@example.com", Password: "StrongPassword123!",
	})
	require.Equal(t, http.StatusOK, status)

	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(raw, &res))
	return res.Token
}
