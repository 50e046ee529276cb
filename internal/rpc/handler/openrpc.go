package handler

import (
	"encoding/json"

	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// OpenRPCSpec represents the OpenRPC specification.
type OpenRPCSpec struct {
	OpenRPC    string            `json:"openrpc"`
	Info       OpenRPCInfo       `json:"info"`
	Servers    []OpenRPCServer   `json:"servers"`
	Methods    []OpenRPCMethod   `json:"methods"`
	Components OpenRPCComponents `json:"components"`
}

// OpenRPCInfo contains API metadata.
type OpenRPCInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenRPCServer represents a server endpoint.
type OpenRPCServer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// OpenRPCMethod represents a JSON-RPC method.
type OpenRPCMethod struct {
	Name        string            `json:"name"`
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Params      []OpenRPCParam    `json:"params"`
	Result      *OpenRPCResult    `json:"result,omitempty"`
	Errors      []OpenRPCErrorRef `json:"errors,omitempty"`
}

// OpenRPCParam represents a method parameter.
type OpenRPCParam struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Required    bool                   `json:"required"`
	Schema      map[string]interface{} `json:"schema"`
}

// OpenRPCResult represents a method result.
type OpenRPCResult struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
}

// OpenRPCErrorRef references an error definition.
type OpenRPCErrorRef struct {
	Ref string `json:"$ref,omitempty"`
}

// OpenRPCComponents contains reusable components.
type OpenRPCComponents struct {
	Schemas map[string]interface{} `json:"schemas,omitempty"`
	Errors  map[string]interface{} `json:"errors,omitempty"`
}

// MethodMeta contains metadata for a registered method.
type MethodMeta struct {
	Summary     string
	Description string
	Params      []OpenRPCParam
	Result      *OpenRPCResult
	Errors      []string // Error names to reference
}

// GenerateOpenRPC generates an OpenRPC document from the registry.
func (r *Registry) GenerateOpenRPC(info OpenRPCInfo, serverURL string) *OpenRPCSpec {
	spec := &OpenRPCSpec{
		OpenRPC: "1.2.6",
		Info:    info,
		Servers: []OpenRPCServer{
			{Name: "Default", URL: serverURL},
		},
		Methods: make([]OpenRPCMethod, 0),
		Components: OpenRPCComponents{
			Schemas: defaultSchemas(),
			Errors:  defaultErrors(),
		},
	}

	for _, name := range r.Methods() {
		meta := r.GetMeta(name)
		params := meta.Params
		if params == nil {
			params = []OpenRPCParam{}
		}
		method := OpenRPCMethod{
			Name:        name,
			Summary:     meta.Summary,
			Description: meta.Description,
			Params:      params,
			Result:      meta.Result,
		}
		for _, errName := range meta.Errors {
			method.Errors = append(method.Errors, OpenRPCErrorRef{
				Ref: "#/components/errors/" + errName,
			})
		}
		spec.Methods = append(spec.Methods, method)
	}

	return spec
}

// ToJSON returns the OpenRPC spec as JSON.
func (spec *OpenRPCSpec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// SchemaRef returns a schema that references a component schema.
func SchemaRef(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func prop(typ string) map[string]interface{} {
	return map[string]interface{}{"type": typ}
}

func defaultSchemas() map[string]interface{} {
	return map[string]interface{}{
		"SessionSnapshot": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_id":                prop("string"),
				"state":                  prop("string"),
				"connected":              prop("boolean"),
				"last_connected_at":      map[string]interface{}{"type": "string", "format": "date-time"},
				"reconnect_attempts":     prop("integer"),
				"auto_approve_enabled":   prop("boolean"),
				"auto_approve_installed": prop("boolean"),
				"source":                 prop("string"),
				"phone":                  prop("string"),
			},
		},
		"JournalEntry": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":             prop("integer"),
				"user_id":        prop("string"),
				"kind":           map[string]interface{}{"type": "string", "enum": []string{"approval", "rename"}},
				"group_id":       prop("string"),
				"participant_id": prop("string"),
				"source":         prop("string"),
				"batch_id":       prop("string"),
				"old_name":       prop("string"),
				"new_name":       prop("string"),
				"sequence":       prop("integer"),
				"error":          prop("string"),
				"created_at":     map[string]interface{}{"type": "string", "format": "date-time"},
			},
		},
	}
}

func defaultErrors() map[string]interface{} {
	return map[string]interface{}{
		"SessionNotFound": map[string]interface{}{
			"code":    message.SessionNotFound,
			"message": "No session for this user",
		},
		"NotConnected": map[string]interface{}{
			"code":    message.NotConnected,
			"message": "Session is not connected",
		},
		"Validation": map[string]interface{}{
			"code":    message.Validation,
			"message": "Invalid parameter",
		},
		"Unavailable": map[string]interface{}{
			"code":    message.Unavailable,
			"message": "Component not configured",
		},
	}
}
