package shared

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name        string
		body        string
		wantErr     error
		errContains string
	}{
		{name: "valid json", body: `{"name":"render"}`},
		{name: "trailing comma", body: `{"name":"render",}`, errContains: "invalid JSON body"},
		{name: "empty body", body: "", wantErr: ErrEmptyBody},
		{name: "two documents", body: `{"name":"a"}{"name":"b"}`, errContains: "unexpected data"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.body))
			var got payload
			err := DecodeJSON(req, &got)

			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, "render", got.Name)
			}
		})
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestDecodeJSONWithReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", errorReader{})
	var target struct{}
	err := DecodeJSON(req, &target)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type selfValidating struct {
	Name string
}

func (s *selfValidating) Validate() error {
	if s.Name == "invalid" {
		return errors.New("name is invalid")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&selfValidating{Name: "ok"}))
	assert.Error(t, ValidateRequest(&selfValidating{Name: "invalid"}))

	type tagged struct {
		ProjectID string `json:"project_id" validate:"required,uuid"`
	}
	err := ValidateRequest(&tagged{})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "project_id", verrs[0].Field(), "fields are reported by JSON name")

	assert.NoError(t, ValidateRequest(&tagged{ProjectID: "6f1c1f0e-8d0b-4b8e-9a3e-1f6c2b7d9a10"}))
}
