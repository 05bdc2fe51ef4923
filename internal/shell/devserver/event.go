package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"gopkg.in/yaml.v3"
)

// stringFields are the event fields typed string, map[string]string or
// map[string][]string. Their scalars are kept as written, so an unquoted
// 2025-03-01 or 1234 stays a string.
var stringFields = map[string]bool{
	"resource":                        true,
	"path":                            true,
	"httpMethod":                      true,
	"body":                            true,
	"headers":                         true,
	"multiValueHeaders":               true,
	"queryStringParameters":           true,
	"multiValueQueryStringParameters": true,
	"pathParameters":                  true,
	"stageVariables":                  true,
}

// LoadEvent reads an API Gateway proxy event fixture. YAML and JSON are both
// accepted; keys use the event's JSON names (queryStringParameters, ...).
func LoadEvent(path string) (events.APIGatewayProxyRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("failed to read event: %w", err)
	}
	return ParseEvent(data)
}

// ParseEvent decodes an event fixture. An empty document is an empty event.
func ParseEvent(data []byte) (events.APIGatewayProxyRequest, error) {
	var req events.APIGatewayProxyRequest

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return req, fmt.Errorf("failed to parse event: %w", err)
	}
	if len(doc.Content) == 0 {
		return req, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return req, errors.New("failed to parse event: document must be a mapping")
	}

	fields := make(map[string]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		fields[key] = plainValue(root.Content[i+1], stringFields[key])
	}

	// Round-trip through JSON so the event's own json tags apply.
	encoded, err := json.Marshal(fields)
	if err != nil {
		return req, fmt.Errorf("failed to encode event: %w", err)
	}
	if err := json.Unmarshal(encoded, &req); err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return req, nil
}

// plainValue converts a node to JSON-encodable values. Timestamps always stay
// strings; other scalars keep their YAML type unless asString is set.
func plainValue(n *yaml.Node, asString bool) any {
	switch n.Kind {
	case yaml.AliasNode:
		return plainValue(n.Alias, asString)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = plainValue(n.Content[i+1], asString)
		}
		return m
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			s = append(s, plainValue(c, asString))
		}
		return s
	}

	if asString {
		return n.Value
	}
	switch n.ShortTag() {
	case "!!str", "!!timestamp", "!!binary":
		return n.Value
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return v
}
