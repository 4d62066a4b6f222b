package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// KeyParams contains the request fields that make up a cacheable identity.
type KeyParams struct {
	Operation   string   // e.g. "itinerary", "budget-advice"
	Model       string   // upstream model name
	System      string   // system prompt
	Prompt      string   // user prompt
	Temperature *float64 // nil means not set
	Namespace   string
}

// KeyGenerator derives cache keys by SHA-256 fingerprinting.
type KeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewKeyGenerator creates a new KeyGenerator with optional prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{Prefix: prefix}
}

// Generate creates a key of the form [prefix:][namespace:]sha256(params).
func (g *KeyGenerator) Generate(params KeyParams) string {
	var sb strings.Builder
	sb.WriteString("op:")
	sb.WriteString(params.Operation)
	sb.WriteString("|model:")
	sb.WriteString(params.Model)
	if params.System != "" {
		sb.WriteString("|system:")
		sb.WriteString(params.System)
	}
	sb.WriteString("|prompt:")
	sb.WriteString(params.Prompt)
	if params.Temperature != nil {
		sb.WriteString("|temp:")
		sb.WriteString(strconv.FormatFloat(*params.Temperature, 'f', 2, 64))
	}

	hash := sha256.Sum256([]byte(sb.String()))

	var key strings.Builder
	if g.Prefix != "" {
		key.WriteString(g.Prefix)
		key.WriteString(":")
	}
	if params.Namespace != "" {
		key.WriteString(params.Namespace)
		key.WriteString(":")
	}
	key.WriteString(hex.EncodeToString(hash[:]))
	return key.String()
}

// Scoped returns a caller-chosen key in its own keyspace,
// [prefix:][namespace:]key:<key>, so it never equals a generated fingerprint.
func (g *KeyGenerator) Scoped(namespace, key string) string {
	var sb strings.Builder
	if g.Prefix != "" {
		sb.WriteString(g.Prefix)
		sb.WriteString(":")
	}
	if namespace != "" {
		sb.WriteString(namespace)
		sb.WriteString(":")
	}
	sb.WriteString("key:")
	sb.WriteString(key)
	return sb.String()
}
