package feeds

import (
	"regexp"
	"strings"
)

var subredditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.|old\.)?reddit\.com/r/([a-zA-Z0-9_]+)`),
	regexp.MustCompile(`^/?r/([a-zA-Z0-9_]+)/?$`),
}

// SubredditFeed maps a subreddit page or an "r/name" shorthand to the
// subreddit's RSS feed.
func SubredditFeed(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, re := range subredditPatterns {
		if m := re.FindStringSubmatch(raw); len(m) == 2 {
			return "https://www.reddit.com/r/" + m[1] + "/.rss", true
		}
	}
	return "", false
}
