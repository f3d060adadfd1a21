// Package openapifix repairs the merged OpenAPI document of the system
// under test before it is handed to the external fuzzer. The merge step
// emits schema references under a generic api_ prefix; each operation's
// x-service-name tells which service prefix they should carry instead.
package openapifix

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v2"
)

var methods = []string{"get", "post", "put", "delete", "patch", "options", "head"}

var (
	schemaRefRe      = regexp.MustCompile(`^#/components/schemas/api_`)
	requestBodyRefRe = regexp.MustCompile(`^#/components/requestBodies/api_`)
	serviceBodyRefRe = regexp.MustCompile(`^#/components/requestBodies/(.+)$`)
)

// Result summarizes one fix-up pass.
type Result struct {
	RewrittenRefs       int
	ClonedRequestBodies int
}

// Fix rewrites api_-prefixed $refs to service-specific ones, clones the
// requestBodies the rewritten refs now point at, writes the fixed document
// to outPath and verifies it still loads as OpenAPI 3.
func Fix(inPath, outPath string) (*Result, error) {

	file, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}

	var doc map[interface{}]interface{}
	if err := yaml.Unmarshal(file, &doc); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}

	res := &Result{}

	forEachOperation(doc, func(op map[interface{}]interface{}, service string) {
		res.RewrittenRefs += rewriteRefs(op, service)
	})

	res.ClonedRequestBodies = cloneRequestBodies(doc)

	encoded, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode fixed spec: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0644); err != nil {
		return nil, fmt.Errorf("write fixed spec: %w", err)
	}

	if _, err := openapi3.NewSwaggerLoader().LoadSwaggerFromFile(outPath); err != nil {
		return res, fmt.Errorf("fixed spec does not load: %w", err)
	}

	return res, nil
}

func forEachOperation(doc map[interface{}]interface{}, fn func(op map[interface{}]interface{}, service string)) {

	paths, ok := doc["paths"].(map[interface{}]interface{})
	if !ok {
		return
	}

	for _, item := range paths {
		pathItem, ok := item.(map[interface{}]interface{})
		if !ok {
			continue
		}
		for _, method := range methods {
			op, ok := pathItem[method].(map[interface{}]interface{})
			if !ok {
				continue
			}
			service, _ := op["x-service-name"].(string)
			if service == "" {
				continue
			}
			fn(op, service)
		}
	}
}

// rewriteRefs walks an operation and replaces the api_ prefix in every
// $ref with the owning service's prefix.
func rewriteRefs(node interface{}, service string) int {

	count := 0

	switch n := node.(type) {

	case map[interface{}]interface{}:
		for k, v := range n {
			if key, ok := k.(string); ok && key == "$ref" {
				if ref, ok := v.(string); ok {
					fixed := schemaRefRe.ReplaceAllString(ref, "#/components/schemas/"+service+"_")
					fixed = requestBodyRefRe.ReplaceAllString(fixed, "#/components/requestBodies/"+service+"_")
					if fixed != ref {
						n[k] = fixed
						count++
					}
					continue
				}
			}
			count += rewriteRefs(v, service)
		}

	case []interface{}:
		for _, v := range n {
			count += rewriteRefs(v, service)
		}
	}

	return count
}

// cloneRequestBodies duplicates each referenced api_ requestBody under the
// service-specific name the rewritten refs now use.
func cloneRequestBodies(doc map[interface{}]interface{}) int {

	components, _ := doc["components"].(map[interface{}]interface{})
	if components == nil {
		return 0
	}
	bodies, _ := components["requestBodies"].(map[interface{}]interface{})
	if bodies == nil {
		return 0
	}

	cloned := 0

	forEachOperation(doc, func(op map[interface{}]interface{}, service string) {

		rb, ok := op["requestBody"].(map[interface{}]interface{})
		if !ok {
			return
		}
		ref, ok := rb["$ref"].(string)
		if !ok {
			return
		}

		m := serviceBodyRefRe.FindStringSubmatch(ref)
		if m == nil || !strings.HasPrefix(m[1], service+"_") {
			return
		}

		name := m[1]
		base := strings.TrimPrefix(name, service+"_")

		if _, exists := bodies[name]; exists {
			return
		}
		src, exists := bodies["api_"+base]
		if !exists {
			return
		}

		bodies[name] = deepCopy(src)
		cloned++
	})

	return cloned
}

func deepCopy(v interface{}) interface{} {
	switch n := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(n))
		for k, val := range n {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, val := range n {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// Endpoints loads an OpenAPI document and returns its operations as
// path -> set of methods, for cross-checking fault endpoints against the
// contract under test.
func Endpoints(specPath string) (map[string]map[string]bool, error) {

	openAPI, err := openapi3.NewSwaggerLoader().LoadSwaggerFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load spec: %w", err)
	}

	eps := map[string]map[string]bool{}
	for path, pathItem := range openAPI.Paths {
		for method := range pathItem.Operations() {
			if eps[path] == nil {
				eps[path] = map[string]bool{}
			}
			eps[path][strings.ToUpper(method)] = true
		}
	}

	return eps, nil
}
