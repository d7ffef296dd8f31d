package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akrennmair/slice"
	"github.com/iancoleman/strcase"
)

func CamelCase(s string) string {
	return strcase.ToCamel(s)
}

// NavigationPath trims a dotted navigation property path, drops empty
// segments and upper-cases the first rune of each segment. Names are
// otherwise kept as given.
func NavigationPath(path string) string {
	segments := slice.Filter(strings.Split(path, "."), func(s string) bool {
		return strings.TrimSpace(s) != ""
	})

	return strings.Join(slice.Map(segments, func(s string) string {
		return exported(strings.TrimSpace(s))
	}), ".")
}

func exported(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func init() {
	strcase.ConfigureAcronym("API", "api")
	strcase.ConfigureAcronym("ID", "id")
}
