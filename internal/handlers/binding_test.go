package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contractStub struct {
	ContractID string  `json:"contractId"`
	TotalValue float64 `json:"totalValue"`
}

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		key         string
		body        string
		expected    contractStub
		expectError bool
	}{
		{
			name:     "nested under the key",
			key:      "contract",
			body:     `{"contract": {"contractId": "CTR-1", "totalValue": 1000}}`,
			expected: contractStub{ContractID: "CTR-1", TotalValue: 1000},
		},
		{
			name:     "flat object",
			key:      "contract",
			body:     `{"contractId": "CTR-2", "totalValue": 250.5}`,
			expected: contractStub{ContractID: "CTR-2", TotalValue: 250.5},
		},
		{
			name:     "other keys fall back to flat",
			key:      "contract",
			body:     `{"milestone": "ignored", "contractId": "CTR-3", "totalValue": 40}`,
			expected: contractStub{ContractID: "CTR-3", TotalValue: 40},
		},
		{
			name:     "empty body binds zero values",
			key:      "contract",
			body:     ``,
			expected: contractStub{},
		},
		{
			name:        "wrong type in flat object",
			key:         "contract",
			body:        `{"contractId": "CTR-4", "totalValue": "lots"}`,
			expectError: true,
		},
		{
			name:        "wrong type in nested object",
			key:         "contract",
			body:        `{"contract": {"contractId": "CTR-5", "totalValue": "lots"}}`,
			expectError: true,
		},
		{
			name:        "key present but not an object",
			key:         "contract",
			body:        `{"contract": "CTR-6"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var result contractStub
			err := BindNestedOrFlat(c, tt.key, &result)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBindNestedOrFlat_RunsBindingTags(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		body    string
		invalid []string
	}{
		{name: "empty body", body: "", invalid: []string{"Type"}},
		{name: "nested payload missing type", body: `{"amendment": {"amendmentNumber": "AMD-1"}}`, invalid: []string{"Type"}},
		{name: "number too long", body: `{"type": "Scope Change", "amendmentNumber": "` + string(bytes.Repeat([]byte("A"), 65)) + `"}`, invalid: []string{"AmendmentNumber"}},
		{name: "valid flat payload", body: `{"type": "Scope Change", "valueChange": 100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))

			var req CreateAmendmentRequest
			err := BindNestedOrFlat(c, "amendment", &req)
			if len(tt.invalid) == 0 {
				assert.NoError(t, err)
				return
			}

			var ve validator.ValidationErrors
			require.ErrorAs(t, err, &ve)
			var fields []string
			for _, fe := range ve {
				fields = append(fields, fe.Field())
			}
			assert.Equal(t, tt.invalid, fields)
		})
	}
}
