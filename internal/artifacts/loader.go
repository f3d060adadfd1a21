// Package artifacts reads the output folder written by the external fuzzer
// and mirrors detection evidence back to disk.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/valyala/fastjson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miaoti/trainticket-fuzz/internal/logger"
	"github.com/miaoti/trainticket-fuzz/pkg/faults"
)

// MissingArtifactsError reports an absent or unreadable artifact directory.
type MissingArtifactsError struct {
	Dir string
	Err error
}

func (e *MissingArtifactsError) Error() string {
	return fmt.Sprintf("artifact directory %s: %v", e.Dir, e.Err)
}

func (e *MissingArtifactsError) Unwrap() error { return e.Err }

// LoadResult is one pass over the fuzzer output folder.
type LoadResult struct {
	Records []*faults.TestRecord
	Skipped int
	Files   int
}

// Extensions of generated test suites the fuzzer can emit.
var sourceExts = map[string]bool{
	".py":   true,
	".java": true,
	".kt":   true,
	".js":   true,
}

// Load parses every recognizable test record under dir. Parsing is
// tolerant: a malformed record is counted and skipped, never fatal. The
// context is checked once per file so a cancelled run leaves no report.
func Load(ctx context.Context, dir string, log *logger.Logger) (*LoadResult, error) {

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &MissingArtifactsError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &MissingArtifactsError{Dir: dir, Err: errors.New("not a directory")}
	}

	l := &loader{
		log:  log,
		res:  &LoadResult{},
		seen: map[string]bool{},
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			rel = name
		}

		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case ext == ".json":
			l.res.Files++
			l.loadJSONFile(path, rel)
		case sourceExts[ext]:
			if strings.HasPrefix(name, "__") || name == "em_test_utils.py" {
				return nil
			}
			l.res.Files++
			l.loadTestSource(path, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return l.res, nil
}

type loader struct {
	log  *logger.Logger
	res  *LoadResult
	seen map[string]bool
}

func (l *loader) loadJSONFile(path, source string) {

	data, err := os.ReadFile(path)
	if err != nil {
		l.log.Warnf("cannot read %s: %v", source, err)
		l.res.Skipped++
		return
	}

	v, err := fastjson.ParseBytes(data)
	if err != nil {
		l.log.Warnf("malformed JSON in %s: %v", source, err)
		l.res.Skipped++
		return
	}

	l.collect(v, source)
}

// collect walks an arbitrary JSON document and lifts out every object that
// looks like a request/response record. Recognized records are not
// descended into again.
func (l *loader) collect(v *fastjson.Value, source string) {

	switch v.Type() {

	case fastjson.TypeArray:
		for _, item := range v.GetArray() {
			l.collect(item, source)
		}

	case fastjson.TypeObject:
		if l.tryRecord(v, source) {
			return
		}
		obj, err := v.Object()
		if err != nil {
			return
		}
		obj.Visit(func(_ []byte, child *fastjson.Value) {
			l.collect(child, source)
		})
	}
}

// tryRecord interprets v as one test record. It returns true when v had a
// request line, whether or not the record survived parsing.
func (l *loader) tryRecord(v *fastjson.Value, source string) bool {

	method := strings.ToUpper(string(v.GetStringBytes("method")))
	path := normalizePath(string(v.GetStringBytes("path")))
	if path == "" {
		path = normalizePath(string(v.GetStringBytes("url")))
	}
	if method == "" || path == "" {
		return false
	}

	status := firstInt(v, "statusCode", "status", "code")

	body, err := structFromValue(bodyValue(v))
	if err != nil {
		l.log.Warnf("record %s %s in %s: unparseable response body: %v", method, path, source, err)
		l.res.Skipped++
		return true
	}

	l.add(&faults.TestRecord{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       body,
		Source:     source,
	})
	return true
}

func (l *loader) add(rec *faults.TestRecord) {
	key := rec.Source + "|" + rec.Method + "|" + rec.Path + "|" + fmt.Sprint(rec.StatusCode) + "|" + bodyKey(rec.Body)
	if l.seen[key] {
		return
	}
	l.seen[key] = true

	rec.Ordinal = len(l.res.Records)
	l.res.Records = append(l.res.Records, rec)
}

func bodyKey(s *structpb.Struct) string {
	if s == nil {
		return ""
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// bodyValue picks the response body out of a record object. The fuzzer
// stores it either nested under response, or flat, sometimes as a JSON
// string rather than an object.
func bodyValue(v *fastjson.Value) *fastjson.Value {

	if res := v.Get("response"); res != nil {
		if inner := res.Get("body"); inner != nil {
			return inner
		}
		return res
	}
	if b := v.Get("body"); b != nil {
		return b
	}
	return v.Get("responseBody")
}

func structFromValue(v *fastjson.Value) (*structpb.Struct, error) {

	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}

	if v.Type() == fastjson.TypeString {
		raw := v.GetStringBytes()
		if len(raw) == 0 {
			return nil, nil
		}
		inner, err := fastjson.ParseBytes(raw)
		if err != nil {
			return nil, err
		}
		v = inner
	}

	if v.Type() != fastjson.TypeObject {
		// Scalar and array bodies carry no fault markers.
		return nil, nil
	}

	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(v.MarshalTo(nil)); err != nil {
		return nil, err
	}
	return s, nil
}

func firstInt(v *fastjson.Value, keys ...string) int {
	for _, k := range keys {
		if f := v.Get(k); f != nil && f.Type() == fastjson.TypeNumber {
			return f.GetInt()
		}
	}
	return 0
}

func normalizePath(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		raw = u.Path
	}
	if !strings.HasPrefix(raw, "/") {
		return ""
	}
	return raw
}

// Generated test suites embed the request line in client calls such as
// requests.delete(url + "/api/v1/...") or .delete("/api/v1/..."), with the
// asserted status and response literal following close behind.
var (
	requestLineRe = regexp.MustCompile(`(?i)\b(get|post|put|delete|patch)\b[^"'` + "`" + `\n]{0,120}["'` + "`" + `]([^"'` + "`" + `]*/api/[^"'` + "`" + `\s]*)["'` + "`" + `]`)
	statusCodeRe  = regexp.MustCompile(`(?i)status(?:_code|code)?\(?\)?\s*(?:==|=|:|,|\)\.isEqualTo\()?\s*\(?\s*([1-5][0-9]{2})\b`)
)

// sourceWindow bounds how far past a request line the assertions for that
// request are searched.
const sourceWindow = 1000

func (l *loader) loadTestSource(path, source string) {

	data, err := os.ReadFile(path)
	if err != nil {
		l.log.Warnf("cannot read %s: %v", source, err)
		l.res.Skipped++
		return
	}
	content := string(data)

	for _, m := range requestLineRe.FindAllStringSubmatchIndex(content, -1) {

		method := strings.ToUpper(content[m[2]:m[3]])
		quoted := content[m[4]:m[5]]

		i := strings.Index(quoted, "/api/")
		if i < 0 {
			continue
		}
		reqPath := quoted[i:]

		end := m[1] + sourceWindow
		if end > len(content) {
			end = len(content)
		}
		window := content[m[1]:end]

		status := 0
		if sm := statusCodeRe.FindStringSubmatch(window); sm != nil {
			status = atoiSafe(sm[1])
		}

		body := extractBodyObject(window)
		if status == 0 && body == nil {
			continue
		}

		bodyStruct, err := structFromValue(body)
		if err != nil {
			l.log.Warnf("record %s %s in %s: unparseable response literal: %v", method, reqPath, source, err)
			l.res.Skipped++
			continue
		}

		l.add(&faults.TestRecord{
			Method:     method,
			Path:       reqPath,
			StatusCode: status,
			Body:       bodyStruct,
			Source:     source,
		})
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// extractBodyObject finds the first balanced object literal in the window
// that carries a fault marker key and parses as JSON, directly or after
// normalizing Python literal syntax.
func extractBodyObject(window string) *fastjson.Value {

	for i := 0; i < len(window); i++ {
		if window[i] != '{' {
			continue
		}

		j := matchBrace(window, i)
		if j < 0 {
			continue
		}
		candidate := window[i : j+1]

		if !strings.Contains(candidate, "isInjected") &&
			!strings.Contains(candidate, "faultName") &&
			!strings.Contains(candidate, "status") {
			i = j
			continue
		}

		if v, err := fastjson.Parse(candidate); err == nil && v.Type() == fastjson.TypeObject {
			return v
		}
		if v, err := fastjson.Parse(pythonToJSON(candidate)); err == nil && v.Type() == fastjson.TypeObject {
			return v
		}
		i = j
	}

	return nil
}

func matchBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var pythonLiterals = strings.NewReplacer(
	"'", `"`,
	"True", "true",
	"False", "false",
	"None", "null",
)

func pythonToJSON(s string) string {
	return pythonLiterals.Replace(s)
}
