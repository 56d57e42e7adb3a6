package env

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hitcontract/packages/builtin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	t.Setenv("HITCONTRACT_TEST_TOKEN", "s3cret")

	r := NewResolver()
	r.SetVariables(map[string]string{"baseUrl": "http://api.test", "companyId": "23"})
	r.SetCapture("create employee", "employeeId", "51")

	tests := []struct {
		input    string
		expected string
	}{
		{"{{baseUrl}}/company/{{companyId}}", "http://api.test/company/23"},
		{"{{ companyId }}", "23"},
		{"Bearer {{$HITCONTRACT_TEST_TOKEN}}", "Bearer s3cret"},
		{"/employees/{{employeeId}}", "/employees/51"},
		{"/employees/{{create employee.employeeId}}", "/employees/51"},
		{"no expressions", "no expressions"},
		{"{{base64(ab)}}", "YWI="},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := r.Resolve(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestResolver_Builtins(t *testing.T) {
	out, err := NewResolver().Resolve("{{uuid()}}")
	require.NoError(t, err)
	_, err = uuid.Parse(out)
	assert.NoError(t, err)
}

func TestResolver_Unresolved(t *testing.T) {
	r := NewResolver()
	r.SetVariable("companyId", "23")

	out, err := r.Resolve("/company/{{companyId}}/employees/{{employeeId}}/{{$HITCONTRACT_UNSET_VAR}}")
	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"employeeId", "$HITCONTRACT_UNSET_VAR"}, unresolved.Exprs)
	assert.Equal(t, "/company/23/employees/{{employeeId}}/{{$HITCONTRACT_UNSET_VAR}}", out)
}

func TestResolver_FunctionError(t *testing.T) {
	_, err := NewResolver().Resolve("{{randomInt(9, 1)}}")
	require.Error(t, err)
	var unresolved *UnresolvedError
	assert.False(t, errors.As(err, &unresolved))
}

func TestResolver_CustomFunctions(t *testing.T) {
	funcs := builtin.NewRegistry()
	funcs.Register("tenant", func([]string) (string, error) { return "acme", nil })

	out, err := NewResolver(WithFunctions(funcs)).Resolve("{{tenant()}}.api.test")
	require.NoError(t, err)
	assert.Equal(t, "acme.api.test", out)
}

func TestResolver_CaptureOverridesVariable(t *testing.T) {
	r := NewResolver()
	r.SetVariable("companyId", "23")
	r.SetCapture("create company", "companyId", "24")

	out, err := r.Resolve("{{companyId}}")
	require.NoError(t, err)
	assert.Equal(t, "24", out)

	v, ok := r.Capture("create company.companyId")
	assert.True(t, ok)
	assert.Equal(t, "24", v)
	assert.Len(t, r.Captures(), 2)
}

func TestResolver_ResolveAll(t *testing.T) {
	r := NewResolver()
	r.SetVariable("token", "abc")

	out, err := r.ResolveAll(map[string]string{"Authorization": "Bearer {{token}}"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, out)

	_, err = r.ResolveAll(map[string]string{"X-Tenant": "{{tenant}}"})
	assert.ErrorContains(t, err, "X-Tenant")

	out, err = r.ResolveAll(nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolver_HasUnresolved(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	assert.False(t, r.HasUnresolved("{{a}} {{uuid()}}"))
	assert.True(t, r.HasUnresolved("{{a}} {{b}}"))

	r.SetCapture("setup", "b", "2")
	assert.False(t, r.HasUnresolved("{{a}} {{setup.b}}"))
}
