// Package faults classifies fuzzer-generated test artifacts against the
// catalog of faults injected into the TrainTicket benchmark.
package faults

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Endpoint identifies one operation a fault can manifest on. Path may
// contain template segments such as {tripId}.
type Endpoint struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

func (e Endpoint) String() string {
	return e.Method + " " + e.Path
}

// Matches reports whether a concrete request line hits this endpoint.
// A {param} template segment matches any single non-empty segment.
func (e Endpoint) Matches(method, path string) bool {

	if !strings.EqualFold(e.Method, method) {
		return false
	}

	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	want := splitSegments(e.Path)
	got := splitSegments(path)
	if len(want) != len(got) {
		return false
	}

	for i := range want {
		if strings.HasPrefix(want[i], "{") && strings.HasSuffix(want[i], "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}

	return true
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Signature describes one injected fault: a stable identifier, the owning
// service, the endpoints it can manifest on and a human-readable trigger
// description. Signatures are data; the matching logic never branches on
// individual fault names.
type Signature struct {
	ID          string     `yaml:"id"`
	Service     string     `yaml:"service"`
	Endpoints   []Endpoint `yaml:"endpoints"`
	Description string     `yaml:"description"`
}

// AppliesTo reports whether the request line belongs to any of the
// signature's endpoints.
func (s Signature) AppliesTo(method, path string) bool {
	for _, e := range s.Endpoints {
		if e.Matches(method, path) {
			return true
		}
	}
	return false
}

// Builtin returns the ten faults injected into the TrainTicket deployment,
// in report order.
func Builtin() []Signature {
	return []Signature{
		{
			ID:      "INVALID_CONTACTS_NAME_FAULT",
			Service: "ts-admin-order-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminorderservice/adminorder"},
				{Method: "PUT", Path: "/api/v1/adminorderservice/adminorder"},
			},
			Description: "Rejects order when contactsName is null, empty, or purely numeric",
		},
		{
			ID:      "INVALID_SEAT_NUMBER_FAULT",
			Service: "ts-admin-order-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminorderservice/adminorder"},
				{Method: "PUT", Path: "/api/v1/adminorderservice/adminorder"},
			},
			Description: "Rejects order when seatNumber doesn't follow format (digits + uppercase letter)",
		},
		{
			ID:      "INVALID_PRICE_RATE_FAULT",
			Service: "ts-admin-basic-info-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminbasicservice/adminbasic/prices"},
			},
			Description: "Rejects price creation when price rates are non-positive",
		},
		{
			ID:      "INVALID_ROUTE_ID_FAULT",
			Service: "ts-admin-basic-info-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminbasicservice/adminbasic/prices"},
			},
			Description: "Rejects price creation when routeId is null or empty",
		},
		{
			ID:      "INVALID_STATION_NAME_FAULT",
			Service: "ts-travel-plan-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/travelplanservice/travelPlan/minStation"},
			},
			Description: "Rejects travel plan when station names are null or empty",
		},
		{
			ID:      "INVALID_STATION_LENGTH_FAULT",
			Service: "ts-travel-plan-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/travelplanservice/travelPlan/minStation"},
			},
			Description: "Rejects travel plan when station name length is outside valid range",
		},
		{
			ID:      "INVALID_TRIP_ID_FORMAT_FAULT",
			Service: "ts-admin-travel-service",
			Endpoints: []Endpoint{
				{Method: "DELETE", Path: "/api/v1/admintravelservice/admintravel/{tripId}"},
			},
			Description: "Rejects trip deletion when tripId is null or empty",
		},
		{
			ID:      "INVALID_TRIP_ID_LENGTH_FAULT",
			Service: "ts-admin-travel-service",
			Endpoints: []Endpoint{
				{Method: "DELETE", Path: "/api/v1/admintravelservice/admintravel/{tripId}"},
			},
			Description: "Rejects trip deletion when tripId length is invalid",
		},
		{
			ID:      "INSUFFICIENT_STATIONS_FAULT",
			Service: "ts-admin-route-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminrouteservice/adminroute"},
			},
			Description: "Rejects route creation when station list has fewer than 2 stations",
		},
		{
			ID:      "INVALID_STATION_NAME_LENGTH_FAULT",
			Service: "ts-admin-route-service",
			Endpoints: []Endpoint{
				{Method: "POST", Path: "/api/v1/adminrouteservice/adminroute"},
			},
			Description: "Rejects route creation when station name length is outside valid range",
		},
	}
}

// LoadTable reads a signature table from a YAML file so new faults can be
// added without touching the matching logic. The file carries a top-level
// faults list with the same shape as the builtin table.
func LoadTable(path string) ([]Signature, error) {

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fault table: %w", err)
	}

	var table struct {
		Faults []Signature `yaml:"faults"`
	}
	if err := yaml.Unmarshal(file, &table); err != nil {
		return nil, fmt.Errorf("parse fault table: %w", err)
	}

	if len(table.Faults) == 0 {
		return nil, fmt.Errorf("fault table %s contains no faults", path)
	}

	seen := map[string]bool{}
	for _, s := range table.Faults {
		if s.ID == "" {
			return nil, fmt.Errorf("fault table %s: entry without id", path)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("fault table %s: duplicate id %s", path, s.ID)
		}
		seen[s.ID] = true
		if len(s.Endpoints) == 0 {
			return nil, fmt.Errorf("fault table %s: %s has no endpoints", path, s.ID)
		}
		for _, e := range s.Endpoints {
			if e.Method == "" || !strings.HasPrefix(e.Path, "/") {
				return nil, fmt.Errorf("fault table %s: %s has invalid endpoint %q", path, s.ID, e.String())
			}
		}
	}

	return table.Faults, nil
}
