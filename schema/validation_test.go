package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func deploySchema() *Schema {
	replicaMin := 1.0
	replicaMax := 64.0
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"service": {Type: "string"},
			"env": {
				Type: "string",
				Enum: []any{"dev", "staging", "prod"},
			},
			"replicas": {
				Type:    "integer",
				Minimum: &replicaMin,
				Maximum: &replicaMax,
			},
			"canary":  {Type: "boolean"},
			"weight":  {Type: "number"},
			"regions": {Type: "array", Items: &Schema{Type: "string"}},
			"owner": {
				Type: "object",
				Properties: map[string]*Schema{
					"email": {Type: "string"},
				},
				Required: []string{"email"},
			},
		},
		Required: []string{"service", "env"},
	}
}

func TestSchemaValidate(t *testing.T) {
	schema := deploySchema()

	tests := []struct {
		name     string
		input    string
		wantErr  string // substring expected in the error, "" means valid
	}{
		{
			name:  "full valid payload",
			input: `{"service":"api","env":"prod","replicas":8,"canary":true,"weight":0.25,"regions":["eu-west-1"],"owner":{"email":"ops@example.com"}}`,
		},
		{
			name:  "minimal valid payload",
			input: `{"service":"api","env":"dev"}`,
		},
		{
			name:    "missing required field",
			input:   `{"service":"api"}`,
			wantErr: "env",
		},
		{
			name:    "wrong string type",
			input:   `{"service":42,"env":"dev"}`,
			wantErr: "expected string",
		},
		{
			name:    "fractional integer",
			input:   `{"service":"api","env":"dev","replicas":2.5}`,
			wantErr: "replicas",
		},
		{
			name:    "integer below minimum",
			input:   `{"service":"api","env":"dev","replicas":0}`,
			wantErr: "minimum",
		},
		{
			name:    "integer above maximum",
			input:   `{"service":"api","env":"dev","replicas":200}`,
			wantErr: "maximum",
		},
		{
			name:  "integer accepted as number",
			input: `{"service":"api","env":"dev","weight":1}`,
		},
		{
			name:    "wrong boolean type",
			input:   `{"service":"api","env":"dev","canary":"yes"}`,
			wantErr: "canary",
		},
		{
			name:    "wrong array item type",
			input:   `{"service":"api","env":"dev","regions":["eu-west-1",7]}`,
			wantErr: "regions[1]",
		},
		{
			name:    "missing nested required",
			input:   `{"service":"api","env":"dev","owner":{}}`,
			wantErr: "owner.email",
		},
		{
			name:    "enum violation",
			input:   `{"service":"api","env":"qa"}`,
			wantErr: "must be one of",
		},
		{
			name:  "null optional is accepted",
			input: `{"service":"api","env":"dev","canary":null}`,
		},
		{
			name:    "malformed json",
			input:   `{"service":`,
			wantErr: "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(json.RawMessage(tt.input))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsFormat(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		errs := ValidationErrors{
			{Path: "service", Message: "required field is missing"},
		}
		if got, want := errs.Error(), "service: required field is missing"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		errs := ValidationErrors{
			{Path: "service", Message: "required"},
			{Path: "owner.email", Message: "expected string, got float64"},
		}
		got := errs.Error()
		for _, want := range []string{"service: required", "owner.email: expected string"} {
			if !strings.Contains(got, want) {
				t.Errorf("Error() = %q, missing %q", got, want)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := (ValidationErrors{}).Error(); got != "" {
			t.Errorf("Error() = %q, want empty", got)
		}
	})
}
