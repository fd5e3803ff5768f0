package docs

import (
	"encoding/json"
	"testing"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if SwaggerInfo.Title == "" {
		t.Fatal("swagger info missing title")
	}
}

func TestSwaggerDocRenders(t *testing.T) {
	var doc struct {
		Paths               map[string]map[string]json.RawMessage `json:"paths"`
		SecurityDefinitions map[string]json.RawMessage            `json:"securityDefinitions"`
	}
	if err := json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("rendered doc is not JSON: %v", err)
	}
	for _, p := range []string{"/", "/health", "/status", "/analyze/{symbol}", "/command", "/config", "/trades"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
	if _, ok := doc.Paths["/config"]["post"]; !ok {
		t.Error("missing POST /config")
	}
	if _, ok := doc.SecurityDefinitions["AdminToken"]; !ok {
		t.Error("missing AdminToken security definition")
	}
}
