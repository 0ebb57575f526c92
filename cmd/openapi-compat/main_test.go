package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"sprout/docs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swagger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestEmbeddedDocCoversRoutes(t *testing.T) {
	surface, err := parseSurface([]byte(docs.SwaggerInfo.ReadDoc()))
	require.NoError(t, err)

	for path, method := range map[string]string{
		"/users/register":                     "post",
		"/profile/me":                         "patch",
		"/posts/{id}":                         "get",
		"/posts/{postId}/comments/{commentId}": "delete",
		"/favourites/{postId}":                "post",
		"/payments/webhook":                   "post",
	} {
		assert.Contains(t, surface[path], method, path)
	}
}

func TestRun_AgainstEmbeddedDoc(t *testing.T) {
	base := writeDoc(t, `
paths:
  /posts:
    get:
      responses:
        "200": {description: OK}
  /posts/{id}:
    parameters: []
    get:
      responses:
        "200": {description: OK}
        "404": {description: Not Found}
`)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-base", base}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "passed")
}

func TestRun_ReportsBreakingChanges(t *testing.T) {
	base := writeDoc(t, `
paths:
  /posts/{id}:
    get:
      responses:
        "200": {}
        "410": {}
    put:
      responses:
        "200": {}
  /posts/archive:
    get:
      responses:
        "200": {}
`)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-base", base}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "removed path: /posts/archive")
	assert.Contains(t, stderr.String(), "removed operation: PUT /posts/{id}")
	assert.Contains(t, stderr.String(), "removed response code: GET /posts/{id} -> 410")
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"-base", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr))
}
