package sanitize

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"
)

const redactedStr = "<redacted>"

// minSecretLength stops short values such as "1" or "on" from being redacted
// everywhere they appear.
const minSecretLength = 4

type SanitizerOptions struct {
	// ExcludeFields is a list of field names whose values are always redacted.
	// Shell style patterns are allowed, e.g. "*_PASSWORD".
	ExcludeFields []string
	// ExcludePatterns is a list of regexes - any capture groups are redacted
	ExcludePatterns []string
	// SecretValues are literal values redacted wherever they appear
	SecretValues []string
}

type Sanitizer struct {
	fields   []string
	patterns []*regexp.Regexp

	secretsLock sync.RWMutex
	secrets     map[string]struct{}
}

func NewSanitizer(opts SanitizerOptions) *Sanitizer {
	// dedupe patterns using map
	var patterns = make(map[string]struct{}, len(opts.ExcludeFields)+len(opts.ExcludePatterns))

	s := &Sanitizer{
		secrets: map[string]struct{}{},
	}

	// first convert exclude fields to regex patterns to exclude the fields from both JSON and YAML
	for _, f := range opts.ExcludeFields {
		s.fields = append(s.fields, strings.ToUpper(f))
		if strings.ContainsAny(f, "*?[") {
			// wildcard fields are only matched against keys
			continue
		}
		patterns[getExcludeFromJsonRegex(f)] = struct{}{}
		patterns[getExcludeFromYamlRegex(f)] = struct{}{}
		patterns[getExcludeFromEnvRegex(f)] = struct{}{}
	}

	// add in custom patterns
	for _, p := range opts.ExcludePatterns {
		patterns[p] = struct{}{}
	}

	// now convert all patterns into regexes
	for p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("Invalid regex pattern", slog.String("pattern", p), "error", err)
			continue
		}
		s.patterns = append(s.patterns, re)
	}

	for _, v := range opts.SecretValues {
		s.AddSecretValue(v)
	}
	return s
}

func getExcludeFromYamlRegex(fieldName string) string {
	return fmt.Sprintf(`%s:[ \t]*([^\n]+)`, regexp.QuoteMeta(fieldName))
}

func getExcludeFromJsonRegex(fieldName string) string {
	return fmt.Sprintf(`"%s"\s*:\s*"([^"]+)"`, regexp.QuoteMeta(fieldName))
}

func getExcludeFromEnvRegex(fieldName string) string {
	return fmt.Sprintf(`\b%s=(\S+)`, regexp.QuoteMeta(fieldName))
}

// AddSecretValue registers a value that must never be shown, e.g. a secret
// read from the host environment and passed to a container.
func (s *Sanitizer) AddSecretValue(v string) {
	if len(v) < minSecretLength {
		return
	}
	s.secretsLock.Lock()
	defer s.secretsLock.Unlock()
	s.secrets[v] = struct{}{}
}

// FieldExcluded reports whether values stored under key must be redacted.
func (s *Sanitizer) FieldExcluded(key string) bool {
	key = strings.ToUpper(key)
	for _, f := range s.fields {
		if f == key {
			return true
		}
		if matched, err := path.Match(f, key); err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Sanitizer) SanitizeString(v string) string {
	for _, re := range s.patterns {
		v = re.ReplaceAllStringFunc(v, func(match string) string {
			groups := re.FindStringSubmatch(match)
			for i := 1; i < len(groups); i++ {
				if groups[i] == "" {
					continue
				}
				match = strings.ReplaceAll(match, groups[i], redactedStr)
			}
			return match
		})
	}

	s.secretsLock.RLock()
	defer s.secretsLock.RUnlock()
	for secret := range s.secrets {
		v = strings.ReplaceAll(v, secret, redactedStr)
	}
	return v
}

// Sanitize redacts string content; other values are returned unchanged.
func (s *Sanitizer) Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return s.SanitizeString(t)
	case []string:
		res := make([]string, len(t))
		for i, item := range t {
			res[i] = s.SanitizeString(item)
		}
		return res
	case map[string]string:
		res := make(map[string]string, len(t))
		for k, item := range t {
			res[k] = s.SanitizeKeyValue(k, item).(string)
		}
		return res
	case error:
		return s.SanitizeString(t.Error())
	}
	return v
}

func (s *Sanitizer) SanitizeKeyValue(k string, v any) any {
	if s.FieldExcluded(k) {
		return redactedStr
	}
	return s.Sanitize(v)
}
