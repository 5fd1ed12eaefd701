package bot

import (
	"strconv"
	"strings"
)

// PREnvironmentName derives the preview environment name for a pull
// request: "<repo>_<number>", normalized to the character set environments
// accept (lowercase letters, digits, underscores).
func PREnvironmentName(repo string, number int) string {
	name := strings.ToLower(repo + "_" + strconv.Itoa(number))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
