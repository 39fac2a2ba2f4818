// Package validate holds the input predicates shared by the transport and
// the game core.
package validate

import "regexp"

const (
	NameMaxLength     = 10
	SessionCodeLength = 6
)

var (
	nameRe   = regexp.MustCompile(`^[a-zA-Z]+$`)
	codeRe   = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	cardIDRe = regexp.MustCompile(`^(prompt|answer)_\d+$`)
)

// PlayerName reports whether name is 1..10 ASCII letters.
func PlayerName(name string) bool {
	return len(name) <= NameMaxLength && nameRe.MatchString(name)
}

func SessionCode(code string) bool {
	return codeRe.MatchString(code)
}

func CardID(id string) bool {
	return cardIDRe.MatchString(id)
}
