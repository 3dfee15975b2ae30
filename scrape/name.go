package scrape

import (
	"regexp"
	"strings"
	"time"
)

const maxNameLength = 50

// namePatterns are tried in order; the first non-empty capture wins.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<div class="exlheader"><b[^>]*>(.+?)</b></div>`),
	regexp.MustCompile(`(?s)<div class="sectiontext">(.+?)</div>`),
	regexp.MustCompile(`(?s)<title>(.+?)</title>`),
	regexp.MustCompile(`(?s)<h1>(.+?)</h1>`),
	regexp.MustCompile(`<b[^>]*>([^<]+)</b>`),
}

var (
	illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// now is replaced in tests.
var now = time.Now

// DeriveName returns a filesystem safe name for an HTML snippet. It never
// returns an empty string.
func DeriveName(src string) string {
	name := cleanName(matchName(src))
	if name == "" {
		name = cleanName(fallbackName())
	}
	return name
}

func matchName(src string) string {
	for _, pattern := range namePatterns {
		for _, match := range pattern.FindAllStringSubmatch(src, -1) {
			if name := strings.TrimSpace(match[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

func fallbackName() string {
	return "HTML_" + now().Format("20060102_150405")
}

func cleanName(name string) string {
	name = illegalNameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "_")
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}
