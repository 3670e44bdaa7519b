package uri

import "fmt"

// Fragment is the validated fragment component of an agent URI: an opaque
// string addressing sub-agent functionality. Fragments never participate
// in identity equality.
type Fragment struct {
	raw string
}

// ParseFragment parses a fragment (without the leading '#'). Characters
// must be RFC 3986 pchar, "/", "?", or percent triplets. The empty
// fragment is valid at this level; the URI parser strips it.
func ParseFragment(input string) (Fragment, error) {
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '%' {
			if i+2 >= len(input) || !isHexDigit(input[i+1]) || !isHexDigit(input[i+2]) {
				return Fragment{}, &FragmentError{
					Span:   Span{Offset: i, Length: min(3, len(input)-i)},
					Reason: "truncated or invalid percent encoding",
				}
			}
			i += 2
			continue
		}
		if !isQueryOrFragmentChar(c) {
			return Fragment{}, &FragmentError{
				Span:   Span{Offset: i, Length: 1},
				Reason: fmt.Sprintf("character %q is not valid in a fragment", c),
			}
		}
	}
	return Fragment{raw: input}, nil
}

// IsEmpty reports whether the fragment is empty.
func (f Fragment) IsEmpty() bool {
	return f.raw == ""
}

// String returns the fragment verbatim, without the leading '#'.
func (f Fragment) String() string {
	return f.raw
}

// MarshalText implements encoding.TextMarshaler.
func (f Fragment) MarshalText() ([]byte, error) {
	return []byte(f.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fragment) UnmarshalText(text []byte) error {
	parsed, err := ParseFragment(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
