package storage

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/dpshade/prompthive/internal/errors"
)

// Layout directories under the store root.
const (
	PromptsDir  = "prompts"
	BanksDir    = "banks"
	TeamsDir    = "teams"
	VersionsDir = ".versions"

	recordExt    = ".md"
	maxKeyRunes  = 64
	teamPrefix   = "@"
	keySeparator = "/"
)

// KeyKind identifies which subtree a key lives in.
type KeyKind int

const (
	KindLocal KeyKind = iota
	KindBank
	KindTeam
)

func (k KeyKind) String() string {
	switch k {
	case KindBank:
		return "bank"
	case KindTeam:
		return "team"
	default:
		return "local"
	}
}

// Key is the canonical storage key of a record.
//
// Local keys have only a Name. Bank keys carry the bank in Namespace and a
// slash-joined path below it in Name (e.g. "sub/name"). Team keys carry the
// team in Namespace and a flat Name.
type Key struct {
	Kind      KeyKind
	Namespace string
	Name      string
}

// LocalKey returns the key of a flat local record.
func LocalKey(name string) Key { return Key{Kind: KindLocal, Name: name} }

// BankKey returns the key of a record inside a bank.
func BankKey(bank, name string) Key { return Key{Kind: KindBank, Namespace: bank, Name: name} }

// TeamKey returns the key of a record inside a team namespace.
func TeamKey(team, name string) Key { return Key{Kind: KindTeam, Namespace: team, Name: name} }

// String renders the key in its user-facing form: name, bank/name or @team/name.
func (k Key) String() string {
	switch k.Kind {
	case KindBank:
		return k.Namespace + keySeparator + k.Name
	case KindTeam:
		return teamPrefix + k.Namespace + keySeparator + k.Name
	default:
		return k.Name
	}
}

// BaseName returns the trailing name segment.
func (k Key) BaseName() string {
	if i := strings.LastIndex(k.Name, keySeparator); i >= 0 {
		return k.Name[i+1:]
	}
	return k.Name
}

// RelPath returns the slash-separated path of the record file relative to the store root.
func (k Key) RelPath() string {
	switch k.Kind {
	case KindBank:
		return path.Join(BanksDir, k.Namespace, k.Name) + recordExt
	case KindTeam:
		return path.Join(TeamsDir, k.Namespace, k.Name) + recordExt
	default:
		return path.Join(PromptsDir, k.Name) + recordExt
	}
}

// validate rejects keys whose components would escape their subtree or
// be hidden from listings. Keys built from disk walks always pass.
func (k Key) validate() error {
	if k.Kind != KindLocal {
		if err := checkComponent(k.Namespace); err != nil {
			return apperrors.InvalidKeyError(k.String(), err.Error())
		}
	}
	parts := []string{k.Name}
	if k.Kind == KindBank {
		parts = strings.Split(k.Name, keySeparator)
	}
	for _, p := range parts {
		if err := checkComponent(p); err != nil {
			return apperrors.InvalidKeyError(k.String(), err.Error())
		}
	}
	if isReadme(k.BaseName()) {
		return apperrors.InvalidKeyError(k.String(), "readme is a reserved name")
	}
	return nil
}

// ParseKey sanitizes user input into a Key.
//
//	"@team/name"       -> team key
//	"bank/sub/name"    -> bank key (arbitrary depth)
//	"name"             -> local key
func ParseKey(input string) (Key, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Key{}, apperrors.InvalidKeyError(input, "empty key")
	}

	if strings.HasPrefix(input, teamPrefix) {
		team, name, ok := strings.Cut(input[len(teamPrefix):], keySeparator)
		if !ok {
			return Key{}, apperrors.InvalidKeyError(input, "team keys take the form @team/name")
		}
		if strings.Contains(name, keySeparator) {
			return Key{}, apperrors.InvalidKeyError(input, "team namespaces are flat")
		}
		team, err := SanitizeComponent(team)
		if err != nil {
			return Key{}, apperrors.InvalidKeyError(input, err.Error())
		}
		name, err = SanitizeComponent(name)
		if err != nil {
			return Key{}, apperrors.InvalidKeyError(input, err.Error())
		}
		key := TeamKey(team, name)
		if err := key.validate(); err != nil {
			return Key{}, err
		}
		return key, nil
	}

	parts := strings.Split(strings.Trim(input, keySeparator), keySeparator)
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		s, err := SanitizeComponent(p)
		if err != nil {
			return Key{}, apperrors.InvalidKeyError(input, err.Error())
		}
		clean = append(clean, s)
	}

	var key Key
	if len(clean) == 1 {
		key = LocalKey(clean[0])
	} else {
		key = BankKey(clean[0], strings.Join(clean[1:], keySeparator))
	}
	if err := key.validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// SanitizeComponent normalizes one path component to NFC, drops every rune
// outside the allowed set and caps the result at 64 runes.
func SanitizeComponent(s string) (string, error) {
	s = norm.NFC.String(s)

	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == maxKeyRunes {
			break
		}
		if allowedRune(r) {
			b.WriteRune(r)
			n++
		}
	}

	out := b.String()
	if err := checkComponent(out); err != nil {
		return "", err
	}
	return out, nil
}

func allowedRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r):
		return true
	case r == '-', r == '_', r == '.':
		return true
	case r >= 0x4e00 && r <= 0x9fff: // CJK unified ideographs
		return true
	case r >= 0x3040 && r <= 0x309f: // Hiragana
		return true
	case r >= 0x30a0 && r <= 0x30ff: // Katakana
		return true
	case r >= 0x0080 && r <= 0x024f: // Latin-1 supplement and extended Latin
		return true
	}
	return false
}

type componentError string

func (e componentError) Error() string { return string(e) }

func checkComponent(s string) error {
	switch {
	case s == "":
		return componentError("empty path component")
	case s == "." || s == "..":
		return componentError("relative path component")
	case strings.HasPrefix(s, "."):
		return componentError("hidden path component")
	case strings.ContainsAny(s, `/\`):
		return componentError("path separator in component")
	}
	return nil
}

func isReadme(stem string) bool {
	return strings.EqualFold(stem, "readme")
}
