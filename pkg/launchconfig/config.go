// Package launchconfig holds the debug configuration records exchanged with
// the IDE: free-form adapter configurations, the "pythoncpp" launch record
// that selects them, and the named configuration store they come from.
package launchconfig

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Well-known configuration keys.
const (
	KeyName        = "name"
	KeyType        = "type"
	KeyRequest     = "request"
	KeyProgram     = "program"
	KeyStopOnEntry = "stopOnEntry"
	KeyProcessID   = "processId"
	KeyPID         = "pid"
)

// Config is a single debug adapter configuration, as found in the
// "configurations" array of launch.json. Values are arbitrary JSON.
type Config map[string]any

// Clone returns a deep copy so callers can mutate the result without
// touching the source (store entries, inline request fields).
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Config(t).Clone())
	case Config:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// String returns the value of key when it is a non-empty string.
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Bool reports whether key holds a truthy value. Only JSON true counts;
// strings such as "true" are not interpreted.
func (c Config) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Name is the configuration's display name.
func (c Config) Name() string { return c.String(KeyName) }

// Type is the debug adapter type (python, cppdbg, cppvsdbg, lldb...).
func (c Config) Type() string { return c.String(KeyType) }

// Request is "launch" or "attach".
func (c Config) Request() string { return c.String(KeyRequest) }

// ProcessID returns the process id stored under processId or pid, or 0 when
// neither holds a usable number. Placeholders ("" or "${command:pickProcess}")
// yield 0.
func (c Config) ProcessID() int {
	for _, key := range []string{KeyProcessID, KeyPID} {
		switch v := c[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// ToConfig converts a decoded JSON object into a Config. It returns nil for
// anything that is not an object.
func ToConfig(v any) Config {
	switch t := v.(type) {
	case Config:
		return t
	case map[string]any:
		return Config(t)
	default:
		return nil
	}
}

// DecodeConfig parses a JSON object.
func DecodeConfig(raw []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	return c, nil
}
