package lark

import (
	"github.com/dlclark/derivre/grammar"
	"github.com/dlclark/derivre/syntax"
	"gopkg.in/yaml.v3"
)

const (
	jsonString  = `"(\\(["\\/bfnrt]|u[a-fA-F0-9]{4})|[^"\\\x00-\x1F\x7F])*"`
	jsonNumber  = `-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?`
	jsonInteger = `-?(0|[1-9][0-9]*)`
	jsonWS      = `[ \t\n\r]+`
)

// compileJSON compiles a %json block. The schema only narrows the type of
// the top-level value; nested values are any JSON.
func (c *compiler) compileJSON(text string, pos Pos) (grammar.NodeRef, error) {
	var schema map[string]interface{}
	if err := yaml.Unmarshal([]byte("{"+text+"}"), &schema); err != nil {
		return grammar.NodeRef{}, wrapAt(pos, OptionsError, err, "invalid JSON schema")
	}

	b := c.b
	lexeme := func(name, pattern string) (grammar.NodeRef, error) {
		rx, err := c.parseRegex(pattern, syntax.ParseOptions{}, pos)
		if err != nil {
			return grammar.NodeRef{}, err
		}
		return b.Lexeme(b.Spec.AddGreedy(name, rx, false)), nil
	}
	ws, err := c.parseRegex(jsonWS, syntax.ParseOptions{}, pos)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	b.Ignore(b.Spec.AddGreedy("json_ws", ws, false))

	str, err := lexeme("json_string", jsonString)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	num, err := lexeme("json_number", jsonNumber)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	boolean := b.Select(b.String("true"), b.String("false"))
	null := b.String("null")

	value := b.Placeholder("json_value")
	comma := b.String(",")
	pair := b.Join(str, b.String(":"), value)
	object := b.Join(b.String("{"), b.Optional(b.Join(pair, b.ZeroOrMore(b.Join(comma, pair)))), b.String("}"))
	array := b.Join(b.String("["), b.Optional(b.Join(value, b.ZeroOrMore(b.Join(comma, value)))), b.String("]"))
	b.SetPlaceholder(value, b.Select(object, array, str, num, boolean, null))

	var root grammar.NodeRef
	switch t := schema["type"]; t {
	case nil:
		root = value
	case "object":
		root = object
	case "array":
		root = array
	case "string":
		root = str
	case "number":
		root = num
	case "integer":
		if root, err = lexeme("json_integer", jsonInteger); err != nil {
			return grammar.NodeRef{}, err
		}
	case "boolean":
		root = boolean
	case "null":
		root = null
	default:
		return grammar.NodeRef{}, errorAt(pos, OptionsError, "unsupported JSON schema type %v", t)
	}
	return root, c.builderError(pos, OptionsError)
}
