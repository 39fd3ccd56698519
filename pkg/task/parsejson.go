package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSONSpec configures a ParseJSON node.
type ParseJSONSpec[B any] struct {
	// From extracts the raw text to parse from the blackboard. Mutually
	// exclusive with FromField; when neither is set the previous sibling's
	// payload is parsed.
	From func(B) string

	// FromField names a blackboard field holding the raw text.
	FromField string

	// Into receives the parsed value. Exactly one of Into and IntoField
	// must be set.
	Into func(b B, v any)

	// IntoField names the blackboard field to store the parsed value in.
	IntoField string

	// Decode overrides the decoder. The default strips Markdown code
	// fences, repairs truncated JSON and decodes with numbers normalized
	// to int64/float64.
	Decode func(data []byte) (any, error)
}

type parseJSONNode[B any] struct {
	info
	spec ParseJSONSpec[B]
}

// ParseJSON parses JSON text, typically model output, onto the blackboard.
// The default decoder tolerates the usual damage: surrounding prose fences
// (```json ... ```) and truncated output with unclosed strings or brackets.
// A parse failure fails the node with the raw text as payload so the trace
// shows what refused to parse.
func ParseJSON[B any](name string, spec ParseJSONSpec[B]) Node[B] {
	return &parseJSONNode[B]{info: info{name: name, kind: "ParseJSON"}, spec: spec}
}

func (n *parseJSONNode[B]) validate() error {
	if n.spec.From != nil && n.spec.FromField != "" {
		return buildErrf("From and FromField are mutually exclusive")
	}
	if (n.spec.Into == nil) == (n.spec.IntoField == "") {
		return buildErrf("needs exactly one of Into and IntoField")
	}
	return nil
}

func (n *parseJSONNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	b := tc.Blackboard()
	var raw string
	switch {
	case n.spec.From != nil:
		raw = n.spec.From(b)
	case n.spec.FromField != "":
		v, err := getField(b, n.spec.FromField)
		if err != nil {
			tc.Tracer().Logf("%v", err)
			return Fail(nil)
		}
		raw = asString(v)
	default:
		raw = asString(tc.Last().Data)
	}

	decode := n.spec.Decode
	if decode == nil {
		decode = decodeLoose
	}
	v, err := decode([]byte(raw))
	if err != nil {
		tc.Tracer().Logf("parse failed: %v", err)
		return Fail(raw)
	}

	if n.spec.Into != nil {
		n.spec.Into(b, v)
		return OK(v)
	}
	if err := setField(b, n.spec.IntoField, v); err != nil {
		tc.Tracer().Logf("%v", err)
		return Fail(nil)
	}
	return OK(v)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}

// decodeLoose is the default ParseJSON decoder: strip fences, try strict,
// then repair and try again.
func decodeLoose(data []byte) (any, error) {
	s := stripFences(string(data))
	var v any
	if err := decodeNumbers(s, &v); err == nil {
		return v, nil
	}
	if err := decodeNumbers(repairJSON(s), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

func decodeNumbers(s string, v *any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	*v = normalizeNumbers(*v)
	return nil
}

// stripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON recovers the common ways model output truncates: it closes an
// unterminated string, drops a trailing comma and closes any open objects
// and arrays in nesting order.
func repairJSON(s string) string {
	var closers []byte
	inStr := false
	esc := false
	for i := 0; i < len(s); i++ {
		if inStr {
			if esc {
				esc = false
				continue
			}
			switch s[i] {
			case '\\':
				esc = true
			case '"':
				inStr = false
			}
			continue
		}
		switch s[i] {
		case '"':
			inStr = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) > 0 && closers[len(closers)-1] == s[i] {
				closers = closers[:len(closers)-1]
			}
		}
	}

	out := []byte(s)
	if esc {
		out = out[:len(out)-1]
	}
	if inStr {
		out = append(out, '"')
	}
	out = bytes.TrimRight(out, " \t\r\n")
	if len(out) > 0 && out[len(out)-1] == ',' {
		out = out[:len(out)-1]
	}
	for i := len(closers) - 1; i >= 0; i-- {
		out = append(out, closers[i])
	}
	return string(out)
}
