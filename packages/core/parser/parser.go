package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/auth"
	"github.com/abdul-hamid-achik/hitcontract/packages/capture"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"gopkg.in/yaml.v3"
)

// RawTag marks a YAML scalar that is copied into JSON text unquoted, so
// `id: !raw "{{employeeId}}"` becomes a number once resolved.
const RawTag = "!raw"

type rawSuite struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	BaseURL     string            `yaml:"baseUrl"`
	Timeout     int               `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	Variables   map[string]string `yaml:"variables"`
	Auth        *auth.Config      `yaml:"auth"`
	WaitFor     *rawWaitFor       `yaml:"waitFor"`
	Before      []string          `yaml:"before"`
	After       []string          `yaml:"after"`
	Cases       []yaml.Node       `yaml:"cases"`
}

type rawWaitFor struct {
	URL      string `yaml:"url"`
	Status   int    `yaml:"status"`
	Timeout  int    `yaml:"timeout"`
	Interval int    `yaml:"interval"`
}

type rawCase struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Tags        []string     `yaml:"tags"`
	Skip        yaml.Node    `yaml:"skip"`
	Only        bool         `yaml:"only"`
	DependsOn   []string     `yaml:"dependsOn"`
	Auth        *auth.Config `yaml:"auth"`
	Request     rawRequest   `yaml:"request"`
	Expect      rawExpect    `yaml:"expect"`
	Capture     yaml.Node    `yaml:"capture"`
}

type rawRequest struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	JSON    yaml.Node         `yaml:"json"`
	Body    string            `yaml:"body"`
	Timeout int               `yaml:"timeout"`
}

type rawExpect struct {
	Status     int               `yaml:"status"`
	BodyLike   yaml.Node         `yaml:"bodyLike"`
	BodyEquals yaml.Node         `yaml:"bodyEquals"`
	Headers    map[string]string `yaml:"headers"`
	BodyLikeAt yaml.Node         `yaml:"bodyLikeAt"`
}

var (
	caseKeys    = []string{"name", "description", "tags", "skip", "only", "dependsOn", "auth", "request", "expect", "capture"}
	requestKeys = []string{"method", "url", "headers", "query", "json", "body", "timeout"}
	expectKeys  = []string{"status", "bodyLike", "bodyEquals", "headers", "bodyLikeAt"}
)

type parser struct {
	file string
}

func (p *parser) errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{File: p.file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// ParseFile reads and parses the suite at path.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return Parse(data, path)
}

// Parse parses a suite document. filename is used in errors and to name
// suites that have no name of their own.
func Parse(data []byte, filename string) (*Suite, error) {
	p := &parser{file: filename}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawSuite
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, p.errorf(0, "suite is empty")
		}
		return nil, p.errorf(0, "%v", err)
	}

	suite := &Suite{
		Path:        filename,
		Name:        raw.Name,
		Description: raw.Description,
		BaseURL:     strings.TrimSpace(raw.BaseURL),
		Timeout:     raw.Timeout,
		Headers:     raw.Headers,
		Variables:   raw.Variables,
		Auth:        raw.Auth,
		Before:      raw.Before,
		After:       raw.After,
	}
	if suite.Name == "" {
		suite.Name = defaultName(filename)
	}
	if suite.Timeout < 0 {
		return nil, p.errorf(0, "timeout must not be negative")
	}
	if err := p.checkAuth(suite.Auth, 0); err != nil {
		return nil, err
	}
	if raw.WaitFor != nil {
		w, err := p.parseWaitFor(raw.WaitFor)
		if err != nil {
			return nil, err
		}
		suite.WaitFor = w
	}
	if len(raw.Cases) == 0 {
		return nil, p.errorf(0, "suite has no cases")
	}

	seen := make(map[string]int)
	for i := range raw.Cases {
		c, err := p.parseCase(&raw.Cases[i])
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[c.Name]; ok {
			return nil, p.errorf(c.Line, "duplicate case name %q (first defined on line %d)", c.Name, prev)
		}
		seen[c.Name] = c.Line
		suite.Cases = append(suite.Cases, c)
	}

	if err := p.checkDependencies(suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// Defaults applied to waitFor.
const (
	DefaultWaitStatus   = 200
	DefaultWaitTimeout  = 30000
	DefaultWaitInterval = 500
)

func (p *parser) parseWaitFor(raw *rawWaitFor) (*WaitFor, error) {
	w := &WaitFor{
		URL:      strings.TrimSpace(raw.URL),
		Status:   raw.Status,
		Timeout:  raw.Timeout,
		Interval: raw.Interval,
	}
	if w.URL == "" {
		return nil, p.errorf(0, "waitFor: url is required")
	}
	if w.Status == 0 {
		w.Status = DefaultWaitStatus
	}
	if w.Status < 100 || w.Status > 599 {
		return nil, p.errorf(0, "waitFor: status %d is not a valid HTTP status", w.Status)
	}
	if w.Timeout <= 0 {
		w.Timeout = DefaultWaitTimeout
	}
	if w.Interval <= 0 {
		w.Interval = DefaultWaitInterval
	}
	return w, nil
}

func defaultName(filename string) string {
	if filename == "" {
		return "suite"
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *parser) parseCase(node *yaml.Node) (*Case, error) {
	if node.Kind != yaml.MappingNode {
		return nil, p.errorf(node.Line, "case must be a mapping")
	}
	if err := p.checkKeys(node, caseKeys, "case"); err != nil {
		return nil, err
	}
	if req := child(node, "request"); req != nil {
		if err := p.checkKeys(req, requestKeys, "request"); err != nil {
			return nil, err
		}
	}
	if exp := child(node, "expect"); exp != nil {
		if err := p.checkKeys(exp, expectKeys, "expect"); err != nil {
			return nil, err
		}
	}

	var raw rawCase
	if err := node.Decode(&raw); err != nil {
		return nil, p.errorf(node.Line, "%v", err)
	}

	c := &Case{
		Name:        strings.TrimSpace(raw.Name),
		Description: raw.Description,
		Tags:        raw.Tags,
		Only:        raw.Only,
		DependsOn:   raw.DependsOn,
		Auth:        raw.Auth,
		Line:        node.Line,
	}
	if c.Name == "" {
		return nil, p.errorf(node.Line, "case name is required")
	}

	skip, err := p.parseSkip(&raw.Skip)
	if err != nil {
		return nil, err
	}
	c.Skip = skip

	if err := p.checkAuth(c.Auth, node.Line); err != nil {
		return nil, err
	}
	if c.Request, err = p.parseRequest(&raw.Request, node.Line); err != nil {
		return nil, err
	}
	if c.Expect, err = p.parseExpect(&raw.Expect, node.Line); err != nil {
		return nil, err
	}
	if c.Captures, err = p.parseCaptures(&raw.Capture); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) parseSkip(node *yaml.Node) (string, error) {
	if node.Kind == 0 {
		return "", nil
	}
	if node.Kind != yaml.ScalarNode {
		return "", p.errorf(node.Line, "skip must be a boolean or a reason")
	}
	if node.ShortTag() == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return "", p.errorf(node.Line, "%v", err)
		}
		if b {
			return "skipped", nil
		}
		return "", nil
	}
	return node.Value, nil
}

func (p *parser) parseRequest(raw *rawRequest, line int) (Request, error) {
	req := Request{
		Method:  strings.TrimSpace(raw.Method),
		URL:     strings.TrimSpace(raw.URL),
		Headers: raw.Headers,
		Query:   raw.Query,
		Body:    raw.Body,
		Timeout: raw.Timeout,
	}

	if req.Method == "" {
		req.Method = string(model.MethodGet)
	}
	if !hasTemplate(req.Method) {
		m, err := model.ParseMethod(req.Method)
		if err != nil {
			return req, p.errorf(line, "unsupported method %q", req.Method)
		}
		req.Method = string(m)
	}
	if req.URL == "" {
		return req, p.errorf(line, "request url is required")
	}
	if req.Timeout < 0 {
		return req, p.errorf(line, "request timeout must not be negative")
	}

	if raw.JSON.Kind != 0 {
		if raw.Body != "" {
			return req, p.errorf(raw.JSON.Line, "request has both json and body")
		}
		text, err := JSONText(&raw.JSON)
		if err != nil {
			return req, p.errorf(raw.JSON.Line, "json: %v", err)
		}
		req.Body = text
		req.JSON = true
	}
	return req, nil
}

func (p *parser) parseExpect(raw *rawExpect, line int) (Expect, error) {
	exp := Expect{
		Status:  raw.Status,
		Headers: raw.Headers,
	}
	if exp.Status != 0 && (exp.Status < 100 || exp.Status > 599) {
		return exp, p.errorf(line, "expected status %d is not a valid HTTP status", exp.Status)
	}

	var err error
	if exp.BodyLike, err = p.patternText(&raw.BodyLike, "bodyLike"); err != nil {
		return exp, err
	}
	if exp.BodyEquals, err = p.patternText(&raw.BodyEquals, "bodyEquals"); err != nil {
		return exp, err
	}

	if raw.BodyLikeAt.Kind != 0 {
		if raw.BodyLikeAt.Kind != yaml.MappingNode {
			return exp, p.errorf(raw.BodyLikeAt.Line, "bodyLikeAt must map paths to patterns")
		}
		for i := 0; i+1 < len(raw.BodyLikeAt.Content); i += 2 {
			key := raw.BodyLikeAt.Content[i]
			if strings.TrimSpace(key.Value) == "" {
				return exp, p.errorf(key.Line, "bodyLikeAt path is empty")
			}
			text, err := p.patternText(raw.BodyLikeAt.Content[i+1], "bodyLikeAt "+key.Value)
			if err != nil {
				return exp, err
			}
			exp.BodyLikeAt = append(exp.BodyLikeAt, PathPattern{Path: key.Value, Pattern: text})
		}
	}
	return exp, nil
}

// patternText converts a pattern node to JSON text and checks it parses
// when it has no expressions left to resolve.
func (p *parser) patternText(node *yaml.Node, field string) (string, error) {
	if node.Kind == 0 {
		return "", nil
	}
	text, err := JSONText(node)
	if err != nil {
		return "", p.errorf(node.Line, "%s: %v", field, err)
	}
	if !hasTemplate(text) {
		if _, err := matcher.ParsePattern([]byte(text)); err != nil {
			return "", p.errorf(node.Line, "%s: %v", field, err)
		}
	}
	return text, nil
}

func (p *parser) parseCaptures(node *yaml.Node) ([]*capture.Capture, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, p.errorf(node.Line, "capture must map names to sources")
	}
	var out []*capture.Capture
	for i := 0; i+1 < len(node.Content); i += 2 {
		c, err := capture.Parse(node.Content[i].Value, node.Content[i+1].Value)
		if err != nil {
			return nil, p.errorf(node.Content[i].Line, "%v", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *parser) checkAuth(a *auth.Config, line int) error {
	if a == nil {
		return nil
	}
	if hasTemplate(a.Username, a.Password, a.Token, a.Key, a.TokenURL, a.ClientID, a.ClientSecret) {
		switch a.Type {
		case auth.TypeBasic, auth.TypeBearer, auth.TypeAPIKey, auth.TypeOAuth2:
			return nil
		}
	}
	if err := a.Validate(); err != nil {
		return p.errorf(line, "auth: %v", err)
	}
	return nil
}

func (p *parser) checkKeys(node *yaml.Node, allowed []string, where string) error {
	if node.Kind != yaml.MappingNode {
		return p.errorf(node.Line, "%s must be a mapping", where)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !contains(allowed, key.Value) {
			return p.errorf(key.Line, "unknown %s field %q", where, key.Value)
		}
	}
	return nil
}

// checkDependencies rejects unknown targets and cycles.
func (p *parser) checkDependencies(s *Suite) error {
	for _, c := range s.Cases {
		for _, dep := range c.DependsOn {
			if dep == c.Name {
				return p.errorf(c.Line, "case %q depends on itself", c.Name)
			}
			if s.Case(dep) == nil {
				return p.errorf(c.Line, "case %q depends on unknown case %q", c.Name, dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(s.Cases))
	var visit func(c *Case) error
	visit = func(c *Case) error {
		switch state[c.Name] {
		case visiting:
			return p.errorf(c.Line, "circular dependency involving %q", c.Name)
		case done:
			return nil
		}
		state[c.Name] = visiting
		for _, dep := range c.DependsOn {
			if err := visit(s.Case(dep)); err != nil {
				return err
			}
		}
		state[c.Name] = done
		return nil
	}
	for _, c := range s.Cases {
		if err := visit(c); err != nil {
			return err
		}
	}
	return nil
}

func child(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasTemplate(values ...string) bool {
	for _, v := range values {
		if strings.Contains(v, "{{") {
			return true
		}
	}
	return false
}

// JSONText renders a YAML node as JSON text, keeping mapping order.
// Scalars tagged !raw are copied verbatim.
func JSONText(node *yaml.Node) (string, error) {
	var b strings.Builder
	if err := writeJSON(&b, node); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeJSON(b *strings.Builder, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			b.WriteString("null")
			return nil
		}
		return writeJSON(b, node.Content[0])
	case yaml.AliasNode:
		return writeJSON(b, node.Alias)
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSON(b, item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		b.WriteByte(']')
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key := node.Content[i].Value
			b.WriteString(matcher.String(key).String())
			b.WriteByte(':')
			if err := writeJSON(b, node.Content[i+1]); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		b.WriteByte('}')
	case yaml.ScalarNode:
		return writeScalar(b, node)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", node.Line)
	}
	return nil
}

func writeScalar(b *strings.Builder, node *yaml.Node) error {
	if node.Tag == RawTag {
		b.WriteString(node.Value)
		return nil
	}
	switch node.ShortTag() {
	case "!!null":
		b.WriteString("null")
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return err
		}
		b.WriteString(matcher.Bool(v).String())
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		b.WriteString(matcher.Number(f).String())
	default:
		b.WriteString(matcher.String(node.Value).String())
	}
	return nil
}
