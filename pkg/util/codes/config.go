package codes

import "github.com/Alijeyrad/simorq_booking/config"

// Config holds settings for booking reference generation
type Config struct {
	// Prefix is prepended to every reference, e.g. "SQ"
	Prefix string

	// Length is the number of random characters, excluding prefix and dashes
	Length int

	// GroupSize splits the random part with dashes for readability
	GroupSize int

	// Charset is the character set used for references
	// If empty, defaults to uppercase alphanumeric without ambiguous chars
	Charset string
}

// DefaultConfig returns sensible defaults for code generation
func DefaultConfig() Config {
	return Config{
		Prefix:    "SQ",
		Length:    8,
		GroupSize: 4,
		Charset:   charsetBookingReference,
	}
}

// GetCharset returns the configured charset or the default if empty
func (c Config) GetCharset() string {
	if c.Charset == "" {
		return charsetBookingReference
	}
	return c.Charset
}

func (c Config) length() int {
	if c.Length <= 0 {
		return DefaultConfig().Length
	}
	return c.Length
}

func (c Config) groupSize() int {
	if c.GroupSize < 0 {
		return 0
	}
	return c.GroupSize
}

// FromCentralConfig converts central config.CodesConfig to package Config
func FromCentralConfig(c config.CodesConfig) Config {
	return Config{
		Prefix:    c.BookingPrefix,
		Length:    c.BookingLength,
		GroupSize: c.BookingGroupSize,
		Charset:   c.Charset,
	}
}
