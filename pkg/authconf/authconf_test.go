package authconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
auth:
  - name: admin
    loginEndpointAuth:
      endpoint: /api/v1/users/login
      verb: POST
      contentType: application/json
      payloadUserPwd:
        username: admin@trainticket.com
        password: "222222"
        usernameField: username
        passwordField: password
      token:
        httpHeaderName: Authorization
        headerPrefix: "Bearer "
        extractFromField: /data/token
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndValidate(t *testing.T) {

	doc, err := Load(writeDoc(t, validDoc))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	require.Len(t, doc.Auth, 1)
	e := doc.Auth[0]
	assert.Equal(t, "admin", e.Name)
	assert.Equal(t, "/api/v1/users/login", e.Login.Endpoint)
	assert.Equal(t, "POST", e.Login.Verb)
	assert.Equal(t, "Authorization", e.Login.Token.HeaderName)
	assert.Equal(t, "Bearer ", e.Login.Token.HeaderPrefix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {

	doc, err := Load(writeDoc(t, `
auth:
  - name: broken
    loginEndpointAuth:
      endpoint: users/login
      verb: OPTIONS
      payloadUserPwd:
        username: u
      token:
        headerPrefix: "Bearer "
`))
	require.NoError(t, err)

	err = doc.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "must start with /")
	assert.ErrorContains(t, err, "unsupported verb OPTIONS")
	assert.ErrorContains(t, err, "missing contentType")
	assert.ErrorContains(t, err, "missing credentials")
	assert.ErrorContains(t, err, "missing credential field mapping")
	assert.ErrorContains(t, err, "missing token httpHeaderName")
	assert.ErrorContains(t, err, "extractFromField")
}

func TestValidateEmptyDocument(t *testing.T) {
	doc := &Document{}
	assert.ErrorContains(t, doc.Validate(), "no auth entries")
}

func TestRuleCompile(t *testing.T) {

	keys, err := Rule{Field: "/data/token"}.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "token"}, keys)

	keys, err = Rule{Field: "/token"}.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, keys)

	_, err = Rule{}.Compile()
	assert.Error(t, err)

	_, err = Rule{Field: "data/token"}.Compile()
	assert.ErrorContains(t, err, "must start with /")

	_, err = Rule{Field: "///"}.Compile()
	assert.ErrorContains(t, err, "names no field")
}

func TestRuleExtract(t *testing.T) {

	rule := Rule{Field: "/data/token"}

	token, err := rule.Extract([]byte(`{"status": 1, "data": {"userId": "u1", "token": "abc.def.ghi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = rule.Extract([]byte(`{"status": 1, "data": {}}`))
	assert.ErrorContains(t, err, "not found")

	_, err = rule.Extract([]byte(`{"data": {"token": 42}}`))
	assert.ErrorContains(t, err, "non-empty string")

	_, err = rule.Extract([]byte(`not json`))
	assert.Error(t, err)
}

func TestRuleExtractArrayIndex(t *testing.T) {

	rule := Rule{Field: "/tokens/0"}
	token, err := rule.Extract([]byte(`{"tokens": ["first", "second"]}`))
	require.NoError(t, err)
	assert.Equal(t, "first", token)
}
