package device

import (
	"fmt"
	"strings"

	"github.com/tangkong/hutch-python/errors"
)

// Kind classifies an attribute's semantic importance to downstream
// consumers. Bit-flag semantics: hinted implies normal, so a consumer
// paying attention to normal attributes also sees hinted ones. Config
// attributes are recorded but not given attention.
type Kind uint8

// Kind constants
const (
	KindOmitted Kind = 0
	KindNormal  Kind = 1
	KindConfig  Kind = 2
	KindHinted  Kind = KindNormal | 4
)

// String returns the lowercase name of the kind
func (k Kind) String() string {
	switch k {
	case KindOmitted:
		return "omitted"
	case KindNormal:
		return "normal"
	case KindConfig:
		return "config"
	case KindHinted:
		return "hinted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Has reports whether k includes the given flag
func (k Kind) Has(flag Kind) bool {
	return k&flag == flag
}

// ParseKind converts a kind name to a Kind value, case-insensitively.
// Unknown names return ErrUnknownKind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "omitted":
		return KindOmitted, nil
	case "normal":
		return KindNormal, nil
	case "config":
		return KindConfig, nil
	case "hinted":
		return KindHinted, nil
	default:
		return KindOmitted, errors.WrapInvalid(
			errors.ErrUnknownKind, "Kind", "ParseKind",
			fmt.Sprintf("parse kind name %q", name))
	}
}
