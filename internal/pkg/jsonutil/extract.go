// Package jsonutil digs JSON payloads out of model replies that wrap them
// in prose or markdown code fences.
package jsonutil

import "strings"

const codeFence = "```"

// ExtractObject returns the first balanced JSON object in raw. A fenced
// block is unwrapped first; a language tag on the fence line is dropped.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := unfence(raw); ok {
		raw = block
	}
	return balancedObject(raw)
}

func unfence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := rest[:end]
	if nl := strings.Index(block, "\n"); nl != -1 {
		first := strings.TrimSpace(block[:nl])
		if first != "" && !strings.ContainsAny(first, "{[") {
			block = block[nl+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// balancedObject scans for the first brace-balanced object, ignoring
// braces inside string literals.
func balancedObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
			} else if ch == '\\' {
				escape = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
