package faults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointMatches(t *testing.T) {

	tests := []struct {
		name     string
		endpoint Endpoint
		method   string
		path     string
		want     bool
	}{
		{
			name:     "exact",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminorderservice/adminorder"},
			method:   "POST",
			path:     "/api/v1/adminorderservice/adminorder",
			want:     true,
		},
		{
			name:     "method case insensitive",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminorderservice/adminorder"},
			method:   "post",
			path:     "/api/v1/adminorderservice/adminorder",
			want:     true,
		},
		{
			name:     "wrong method",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminorderservice/adminorder"},
			method:   "GET",
			path:     "/api/v1/adminorderservice/adminorder",
			want:     false,
		},
		{
			name:     "template segment binds concrete value",
			endpoint: Endpoint{Method: "DELETE", Path: "/api/v1/admintravelservice/admintravel/{tripId}"},
			method:   "DELETE",
			path:     "/api/v1/admintravelservice/admintravel/ABC123",
			want:     true,
		},
		{
			name:     "template segment requires a value",
			endpoint: Endpoint{Method: "DELETE", Path: "/api/v1/admintravelservice/admintravel/{tripId}"},
			method:   "DELETE",
			path:     "/api/v1/admintravelservice/admintravel",
			want:     false,
		},
		{
			name:     "template segment matches one segment only",
			endpoint: Endpoint{Method: "DELETE", Path: "/api/v1/admintravelservice/admintravel/{tripId}"},
			method:   "DELETE",
			path:     "/api/v1/admintravelservice/admintravel/a/b",
			want:     false,
		},
		{
			name:     "trailing slash tolerated",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminrouteservice/adminroute"},
			method:   "POST",
			path:     "/api/v1/adminrouteservice/adminroute/",
			want:     true,
		},
		{
			name:     "query string ignored",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminbasicservice/adminbasic/prices"},
			method:   "POST",
			path:     "/api/v1/adminbasicservice/adminbasic/prices?debug=1",
			want:     true,
		},
		{
			name:     "different path",
			endpoint: Endpoint{Method: "POST", Path: "/api/v1/adminbasicservice/adminbasic/prices"},
			method:   "POST",
			path:     "/api/v1/adminrouteservice/adminroute",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.endpoint.Matches(tt.method, tt.path))
		})
	}
}

func TestBuiltinTable(t *testing.T) {

	sigs := Builtin()
	require.Len(t, sigs, 10)

	seen := map[string]bool{}
	for _, s := range sigs {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Service)
		assert.NotEmpty(t, s.Description)
		assert.NotEmpty(t, s.Endpoints)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}

	// The two trip faults share the same templated endpoint.
	assert.Equal(t, sigs[6].Endpoints, sigs[7].Endpoints)
}

func TestLoadTable(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "faults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
faults:
  - id: SOME_FAULT
    service: ts-some-service
    endpoints:
      - method: POST
        path: /api/v1/some/thing
    description: Rejects something
`), 0644))

	sigs, err := LoadTable(path)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "SOME_FAULT", sigs[0].ID)
	assert.True(t, sigs[0].AppliesTo("POST", "/api/v1/some/thing"))
}

func TestLoadTableRejectsBadTables(t *testing.T) {

	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	_, err := LoadTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadTable(write("empty.yaml", "faults: []\n"))
	assert.ErrorContains(t, err, "no faults")

	_, err = LoadTable(write("noid.yaml", "faults:\n  - service: x\n    endpoints:\n      - method: GET\n        path: /a\n"))
	assert.ErrorContains(t, err, "without id")

	_, err = LoadTable(write("dup.yaml", `
faults:
  - id: A
    endpoints: [{method: GET, path: /a}]
  - id: A
    endpoints: [{method: GET, path: /a}]
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadTable(write("noep.yaml", "faults:\n  - id: A\n"))
	assert.ErrorContains(t, err, "no endpoints")
}
