package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValidJSON(t *testing.T) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("doc is not valid JSON: %v", err)
	}
	if parsed["basePath"] != "/v1" {
		t.Errorf("basePath = %v, want /v1", parsed["basePath"])
	}
	paths, _ := parsed["paths"].(map[string]any)
	if _, ok := paths["/webhooks/stripe"]; !ok {
		t.Error("webhook path missing from doc")
	}
}
