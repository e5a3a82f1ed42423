// Package payfast speaks the PayFast hosted-checkout and ITN (instant transaction notification) contract.
package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const signatureField = "signature"

// Field is one key/value pair. PayFast signs fields in the order they are sent,
// so the order of a Fields slice is significant.
type Field struct {
	Key   string
	Value string
}

type Fields []Field

// Get returns the first value for key, or "".
func (f Fields) Get(key string) string {
	for _, field := range f {
		if field.Key == key {
			return field.Value
		}
	}
	return ""
}

// ParseForm decodes an application/x-www-form-urlencoded body keeping field order,
// which url.ParseQuery discards.
func ParseForm(body []byte) (Fields, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, fmt.Errorf("empty payload")
	}
	pairs := strings.Split(raw, "&")
	fields := make(Fields, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("decode value for %q: %w", k, err)
		}
		fields = append(fields, Field{Key: k, Value: v})
	}
	return fields, nil
}

// Sign computes the PayFast signature: md5 over the urlencoded, non-empty fields
// in order (signature excluded) with the passphrase appended when set.
func Sign(fields Fields, passphrase string) string {
	var b strings.Builder
	for _, field := range fields {
		if field.Key == signatureField {
			continue
		}
		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(field.Key)
		b.WriteByte('=')
		b.WriteString(encode(value))
	}
	if pass := strings.TrimSpace(passphrase); pass != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(encode(pass))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether signature matches the fields.
func Verify(fields Fields, signature, passphrase string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(fields, passphrase)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// encode matches PHP urlencode, which PayFast uses server side.
func encode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "~", "%7E")
}
