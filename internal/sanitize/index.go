package sanitize

import "sync/atomic"

// DefaultExcludeFields are the setting names treated as secrets when no
// configuration is given.
var DefaultExcludeFields = []string{
	"GITHUB_TOKEN",
	"*_PASSWORD",
	"*_SECRET",
	"*_TOKEN",
	"password",
	"token",
}

var instance atomic.Pointer[Sanitizer]

func init() {
	instance.Store(NewSanitizer(SanitizerOptions{ExcludeFields: DefaultExcludeFields}))
}

// Instance returns the process wide sanitizer used by loggers and printers.
func Instance() *Sanitizer {
	return instance.Load()
}

// SetInstance replaces the process wide sanitizer; it is called once the
// configuration is loaded.
func SetInstance(s *Sanitizer) {
	if s != nil {
		instance.Store(s)
	}
}

func SanitizeLogEntries(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues)%2 != 0 {
		// empty the whole thing if the keys and values are not in pairs
		return nil
	}

	s := Instance()
	sanitizeKeyAndValues := make([]interface{}, len(keysAndValues))
	for i := 0; i < len(keysAndValues); i += 2 {
		sanitizeKeyAndValues[i] = keysAndValues[i]

		if key, ok := keysAndValues[i].(string); ok {
			sanitizeKeyAndValues[i+1] = s.SanitizeKeyValue(key, keysAndValues[i+1])
		} else {
			sanitizeKeyAndValues[i+1] = s.Sanitize(keysAndValues[i+1])
		}
	}

	return sanitizeKeyAndValues
}
