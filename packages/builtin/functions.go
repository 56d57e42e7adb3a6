package builtin

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func computes a value from string arguments.
type Func func(args []string) (string, error)

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = funcNow
	r.funcs["date"] = funcDate
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["randomInt"] = funcRandomInt
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["cnpj"] = funcCNPJ
	r.funcs["base64"] = funcBase64
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names lists the registered functions.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr, e.g. `randomInt(1, 10)`. The boolean is false when
// expr is not a call to a registered function.
func (r *Registry) Call(expr string) (string, bool, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return "", false, nil
	}

	fn, ok := r.funcs[matches[1]]
	if !ok {
		return "", false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	out, err := fn(args)
	if err != nil {
		return "", true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return out, true, nil
}

// parseArgs splits on commas outside single or double quotes.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return v, nil
}

func funcUUID(_ []string) (string, error) {
	return uuid.NewString(), nil
}

func funcNow(_ []string) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcDate(args []string) (string, error) {
	layout := "2006-01-02"
	if len(args) > 0 {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout), nil
}

func funcTimestamp(_ []string) (string, error) {
	return strconv.FormatInt(time.Now().Unix(), 10), nil
}

func funcTimestampMs(_ []string) (string, error) {
	return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

func funcRandomInt(args []string) (string, error) {
	lo, err := intArg(args, 0, 0)
	if err != nil {
		return "", err
	}
	hi, err := intArg(args, 1, 100)
	if err != nil {
		return "", err
	}
	if hi < lo {
		return "", fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return strconv.Itoa(rand.Intn(hi-lo+1) + lo), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, error) {
	n, err := intArg(args, 0, 16)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("length %d is negative", n)
	}
	return randomString(n, alphanumeric), nil
}

func funcRandomEmail(_ []string) (string, error) {
	const lower = "abcdefghijklmnopqrstuvwxyz"
	return randomString(8, lower) + "@" + randomString(6, lower) + ".com", nil
}

// funcCNPJ returns a random Brazilian company registration number with
// valid check digits, formatted as 00.000.000/0000-00.
func funcCNPJ(_ []string) (string, error) {
	digits := make([]int, 14)
	for i := 0; i < 8; i++ {
		digits[i] = rand.Intn(10)
	}
	// branch 0001
	digits[11] = 1
	digits[12] = cnpjCheckDigit(digits[:12])
	digits[13] = cnpjCheckDigit(digits[:13])

	var b strings.Builder
	for i, d := range digits {
		switch i {
		case 2, 5:
			b.WriteByte('.')
		case 8:
			b.WriteByte('/')
		case 12:
			b.WriteByte('-')
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String(), nil
}

func cnpjCheckDigit(digits []int) int {
	weight := len(digits) - 7
	sum := 0
	for _, d := range digits {
		sum += d * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func funcBase64(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("missing argument")
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
