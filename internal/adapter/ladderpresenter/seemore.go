package ladderpresenter

import "strings"

const (
	// SeeMorePadding zero-width spaces push the body behind KakaoTalk's fold.
	SeeMorePadding = 500
	zeroWidthSpace = "\u200b"
	foldAfter      = 5
)

// ApplySeeMorePadding keeps header visible and hides body behind the fold.
func ApplySeeMorePadding(body, header string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	header = strings.TrimSpace(header)

	var b strings.Builder
	b.Grow(len(body) + len(header) + SeeMorePadding*len(zeroWidthSpace) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(zeroWidthSpace, SeeMorePadding))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String()
}
