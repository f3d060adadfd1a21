// Package authconf models the authentication template consumed by the
// external fuzzer. The harness only loads and validates the document; the
// login flow itself is executed by the fuzzer.
package authconf

import (
	"fmt"
	"os"
	"strings"

	"github.com/valyala/fastjson"
	"gopkg.in/yaml.v2"
)

// Document is the top-level authentication template.
type Document struct {
	Auth []Entry `yaml:"auth"`
}

// Entry is one credentialed identity the fuzzer can act as.
type Entry struct {
	Name  string    `yaml:"name"`
	Login LoginAuth `yaml:"loginEndpointAuth"`
}

// LoginAuth names the login endpoint and how to drive it.
type LoginAuth struct {
	Endpoint    string  `yaml:"endpoint"`
	Verb        string  `yaml:"verb"`
	ContentType string  `yaml:"contentType"`
	Payload     Payload `yaml:"payloadUserPwd"`
	Token       Rule    `yaml:"token"`
}

// Payload maps credentials onto the login request body fields.
type Payload struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	UsernameField string `yaml:"usernameField"`
	PasswordField string `yaml:"passwordField"`
}

// Rule describes how the session token is lifted from the login response:
// which header carries it on subsequent requests, the value prefix, and a
// pointer into the login response body.
type Rule struct {
	HeaderName   string `yaml:"httpHeaderName"`
	HeaderPrefix string `yaml:"headerPrefix"`
	Field        string `yaml:"extractFromField"`
}

// Load reads an authentication document from a YAML file.
func Load(path string) (*Document, error) {

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read auth config: %w", err)
	}

	doc := &Document{}
	if err := yaml.Unmarshal(file, doc); err != nil {
		return nil, fmt.Errorf("parse auth config: %w", err)
	}

	return doc, nil
}

var allowedVerbs = map[string]bool{"POST": true, "GET": true}

// Validate checks the document the way the external fuzzer will read it
// and reports every problem at once.
func (d *Document) Validate() error {

	if len(d.Auth) == 0 {
		return fmt.Errorf("auth config has no auth entries")
	}

	var problems []string
	for i, e := range d.Auth {

		who := e.Name
		if who == "" {
			who = fmt.Sprintf("entry #%d", i+1)
			problems = append(problems, who+": missing name")
		}

		l := e.Login
		if !strings.HasPrefix(l.Endpoint, "/") {
			problems = append(problems, who+": login endpoint must start with /")
		}
		if !allowedVerbs[strings.ToUpper(l.Verb)] {
			problems = append(problems, who+": unsupported verb "+l.Verb)
		}
		if l.ContentType == "" {
			problems = append(problems, who+": missing contentType")
		}
		if l.Payload.Username == "" || l.Payload.Password == "" {
			problems = append(problems, who+": missing credentials")
		}
		if l.Payload.UsernameField == "" || l.Payload.PasswordField == "" {
			problems = append(problems, who+": missing credential field mapping")
		}
		if l.Token.HeaderName == "" {
			problems = append(problems, who+": missing token httpHeaderName")
		}
		if _, err := l.Token.Compile(); err != nil {
			problems = append(problems, who+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid auth config:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Compile turns the extractFromField pointer (e.g. /data/token) into the
// key path used to walk the login response. Numeric segments index into
// arrays.
func (r Rule) Compile() ([]string, error) {

	if r.Field == "" {
		return nil, fmt.Errorf("missing token extractFromField")
	}
	if !strings.HasPrefix(r.Field, "/") {
		return nil, fmt.Errorf("token extractFromField %q must start with /", r.Field)
	}

	var keys []string
	for _, seg := range strings.Split(r.Field, "/") {
		if seg == "" {
			continue
		}
		keys = append(keys, seg)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("token extractFromField %q names no field", r.Field)
	}

	return keys, nil
}

// Extract applies the rule to a sample login response body. Used to verify
// the extraction rule against a captured response before handing the
// document to the fuzzer.
func (r Rule) Extract(body []byte) (string, error) {

	keys, err := r.Compile()
	if err != nil {
		return "", err
	}

	v, err := fastjson.ParseBytes(body)
	if err != nil {
		return "", fmt.Errorf("parse sample response: %w", err)
	}

	t := v.Get(keys...)
	if t == nil {
		return "", fmt.Errorf("field %s not found in sample response", r.Field)
	}

	token := string(t.GetStringBytes())
	if token == "" {
		return "", fmt.Errorf("field %s is not a non-empty string", r.Field)
	}

	return token, nil
}
