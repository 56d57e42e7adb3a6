package builtin

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	out, ok, err := r.Call("uuid()")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = uuid.Parse(out)
	assert.NoError(t, err)

	out, ok, err = r.Call("randomInt(5, 5)")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5", out)

	out, _, err = r.Call(`base64("a,b")`)
	require.NoError(t, err)
	assert.Equal(t, "YSxi", out)

	_, ok, _ = r.Call("missing()")
	assert.False(t, ok)

	_, ok, _ = r.Call("companyId")
	assert.False(t, ok)

	_, ok, err = r.Call("randomInt(a, 3)")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("company", func(args []string) (string, error) { return "Acme " + args[0], nil })

	out, ok, err := r.Call("company(Corp)")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", out)
	assert.Contains(t, r.Names(), "company")
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, parseArgs("1, 2"))
	assert.Equal(t, []string{"a, b", "c"}, parseArgs(`'a, b', c`))
	assert.Nil(t, parseArgs(""))
}

func TestCNPJCheckDigits(t *testing.T) {
	digits := []int{1, 1, 2, 2, 2, 3, 3, 3, 0, 0, 0, 1}
	assert.Equal(t, 8, cnpjCheckDigit(digits))
	assert.Equal(t, 1, cnpjCheckDigit(append(digits, 8)))

	out, err := funcCNPJ(nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/0001-\d{2}$`), out)
}

func TestRandomFunctions(t *testing.T) {
	out, err := funcRandomString([]string{"12"})
	require.NoError(t, err)
	assert.Len(t, out, 12)

	out, err = funcRandomEmail(nil)
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z]{8}@[a-z]{6}\.com$`, out)

	_, err = funcRandomInt([]string{"10", "1"})
	assert.Error(t, err)

	out, err = funcTimestamp(nil)
	require.NoError(t, err)
	_, err = strconv.ParseInt(out, 10, 64)
	assert.NoError(t, err)
}
