package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SKUDelimiter separates the five SKU fields.
const SKUDelimiter = "-"

// UniversalLength is the length sentinel that fulfils any requested length.
const UniversalLength = "00"

var (
	styleRe  = regexp.MustCompile(`^[A-Z]{2}$`)
	waistRe  = regexp.MustCompile(`^\d{2}$`)
	shapeRe  = regexp.MustCompile(`^[A-Z]$`)
	lengthRe = regexp.MustCompile(`^\d{2}$`)
	washRe   = regexp.MustCompile(`^[A-Z]{3}$`)
)

// SKU is the five-part garment code style-waist-shape-length-wash.
type SKU struct {
	Style  string `json:"style" bson:"style"`
	Waist  string `json:"waist" bson:"waist"`
	Shape  string `json:"shape" bson:"shape"`
	Length string `json:"length" bson:"length"`
	Wash   string `json:"wash" bson:"wash"`
}

// SKUFormatError describes the first field that failed validation.
type SKUFormatError struct {
	Code   string
	Field  string
	Value  string
	Reason string
}

func (e *SKUFormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid SKU %q: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("invalid SKU %q: %s %q %s", e.Code, e.Field, e.Value, e.Reason)
}

func (e *SKUFormatError) Unwrap() error { return ErrInvalidSKU }

// ParseSKU parses code against the default rules.
func ParseSKU(code string) (SKU, error) {
	return DefaultSKURules().Parse(code)
}

// MustParseSKU panics on an invalid code. Intended for fixtures.
func MustParseSKU(code string) SKU {
	sku, err := ParseSKU(code)
	if err != nil {
		panic(err)
	}
	return sku
}

// FormatSKU joins components back into a code.
func FormatSKU(style, waist, shape, length, wash string) string {
	return strings.Join([]string{style, waist, shape, length, wash}, SKUDelimiter)
}

// String formats the SKU. ParseSKU(s).String() == s for every valid s.
func (s SKU) String() string {
	return FormatSKU(s.Style, s.Waist, s.Shape, s.Length, s.Wash)
}

// Prefix returns the immutable style-waist part used for candidate lookup.
func (s SKU) Prefix() string {
	return s.Style + SKUDelimiter + s.Waist
}

// SizeKey is the SKU without its wash, used to find size charts.
func (s SKU) SizeKey() string {
	return strings.Join([]string{s.Style, s.Waist, s.Shape, s.Length}, SKUDelimiter)
}

// IsUniversalLength reports whether the length is the universal sentinel.
func (s SKU) IsUniversalLength() bool {
	return s.Length == UniversalLength
}

// WithLength returns a copy with the length replaced.
func (s SKU) WithLength(length string) SKU {
	s.Length = length
	return s
}

// Parse validates code format and this rule set's domain ranges.
func (r *SKURules) Parse(code string) (SKU, error) {
	parts := strings.Split(code, SKUDelimiter)
	if len(parts) != 5 {
		return SKU{}, &SKUFormatError{Code: code, Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts))}
	}

	sku := SKU{Style: parts[0], Waist: parts[1], Shape: parts[2], Length: parts[3], Wash: parts[4]}
	if err := r.Validate(sku); err != nil {
		err.Code = code
		return SKU{}, err
	}
	return sku, nil
}

// Validate checks each field independently against its format and range.
func (r *SKURules) Validate(s SKU) *SKUFormatError {
	fail := func(field, value, reason string) *SKUFormatError {
		return &SKUFormatError{Code: s.String(), Field: field, Value: value, Reason: reason}
	}

	if !styleRe.MatchString(s.Style) {
		return fail("style", s.Style, "must be two uppercase letters")
	}
	if !waistRe.MatchString(s.Waist) {
		return fail("waist", s.Waist, "must be two digits")
	}
	if w, _ := strconv.Atoi(s.Waist); w < r.WaistMin || w > r.WaistMax {
		return fail("waist", s.Waist, fmt.Sprintf("must be between %d and %d", r.WaistMin, r.WaistMax))
	}
	if !shapeRe.MatchString(s.Shape) {
		return fail("shape", s.Shape, "must be one uppercase letter")
	}
	if len(r.Shapes) > 0 && !contains(r.Shapes, s.Shape) {
		return fail("shape", s.Shape, "is not a known shape")
	}
	if err := r.validateLength(s.Length); err != nil {
		err.Code = s.String()
		return err
	}
	if !washRe.MatchString(s.Wash) {
		return fail("wash", s.Wash, "must be three uppercase letters")
	}
	if len(r.Washes) > 0 && !contains(r.Washes, s.Wash) {
		return fail("wash", s.Wash, "is not a known wash")
	}
	return nil
}

// ValidateLength checks a standalone length field, as used by hemming.
func (r *SKURules) ValidateLength(length string) error {
	if err := r.validateLength(length); err != nil {
		return err
	}
	return nil
}

func (r *SKURules) validateLength(length string) *SKUFormatError {
	if !lengthRe.MatchString(length) {
		return &SKUFormatError{Field: "length", Value: length, Reason: "must be two digits"}
	}
	if length == UniversalLength {
		return nil
	}
	if l, _ := strconv.Atoi(length); l < r.LengthMin || l > r.LengthMax {
		return &SKUFormatError{Field: "length", Value: length,
			Reason: fmt.Sprintf("must be %s or between %d and %d", UniversalLength, r.LengthMin, r.LengthMax)}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
