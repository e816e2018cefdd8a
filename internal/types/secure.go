package types

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (API keys, connection strings). Both the
// fmt.Stringer and json.Marshaler implementations emit a fixed placeholder.
//
// Call Unmask only at the point the raw value is genuinely needed, such as
// when building an Authorization header or opening a database pool.
type SecretString string

const secretPlaceholder = "***REDACTED***"

// String implements fmt.Stringer with a redacted placeholder.
func (s SecretString) String() string { return secretPlaceholder }

// MarshalJSON encodes the redacted placeholder, never the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + secretPlaceholder + `"`), nil
}

// Unmask returns the raw secret value.
func (s SecretString) Unmask() string { return string(s) }
