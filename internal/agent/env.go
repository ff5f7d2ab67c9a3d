package agent

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildTaskWithEnvironment prefixes the user task with the site it runs on
// and the section it starts in.
func BuildTaskWithEnvironment(rawTask, startURL string) string {
	u, err := url.Parse(startURL)
	if err != nil || u.Host == "" {
		return rawTask
	}

	host := strings.ToLower(u.Host)
	path := strings.TrimRight(u.Path, "/")

	var pathNote string
	if path != "" {
		pathNote = fmt.Sprintf(`
Starting path on the site: %s.
Try to stay within the section whose URL starts with this path.
Do not move to other major sections of the site (other root paths) unless
the user explicitly asked for it, especially through the global header menu.`,
			path,
		)
	}

	return fmt.Sprintf(
		`You are working on the site %s.
Starting page: %s.%s

Do not go to other domains and do not open external search engines.
User task: %s`,
		host, startURL, pathNote, rawTask,
	)
}
