package ai

import (
	"feed-digest/app/feed"
)

// Built-in prompt templates. The general type has no specific template of
// its own; it falls through to the global template, then to the default.

const defaultPromptTemplate = `You are a helpful assistant creating a newsletter digest for a busy reader who wants to stay informed but doesn't have time to read every article.

The feed "{feed_name}" has published {article_count} articles in the last {period}.

Please create an engaging newsletter summary in HTML format suitable for email. Include:

1. **Overview** (2-3 sentences): What were the main themes or topics covered this {period}?

2. **Highlights** (3-5 articles): The most important or interesting articles, each with:
   - Linked title
   - 2-3 sentence summary in your own words
   - Why this matters or who would find it useful

3. **Quick Mentions**: Bullet points for other notable articles worth knowing about.

4. **Recommended Read**: Pick the single best article for someone who only has time to read one thing. Explain your choice.

Write in a warm, conversational tone. Be concise but informative. Use HTML formatting (h2, h3, p, ul, li, a, strong, em) but keep it simple for email compatibility.

Articles to summarize:
{articles_markdown}`

const linkblogPromptTemplate = `You are creating a simple digest of interesting links from "{feed_name}" for a reader who wants a quick list of what's been shared.

This feed shared {article_count} links in the last {period}.

Create a clean, scannable HTML list. Format:

1. **Brief intro** (1 sentence): What kind of links were shared this {period}?

2. **The Links**: A simple unordered list where each item has:
   - The linked title
   - One sentence describing what it is or why it's interesting

Keep it minimal and scannable. No lengthy commentary needed - let the links speak for themselves. Use simple HTML (h2, p, ul, li, a, strong) suitable for email.

Links to include:
{articles_markdown}`

const musicPromptTemplate = `You are creating a music digest from "{feed_name}" for a reader who wants to discover new music and stay current with what's being recommended.

This feed featured {article_count} posts in the last {period}.

Create an engaging HTML summary focused on the music. Include:

1. **Overview** (2-3 sentences): What genres, moods, or themes dominated this {period}'s selections?

2. **Featured Tracks**: For each post, extract and highlight:
   - **Artist - "Track Title"** (bold the artist and track names)
   - Brief context: what the blogger said about it, the vibe, or why it was featured
   - Link to the original post

3. **Artists to Explore**: List any artists mentioned multiple times or given special attention.

4. **Playlist Pick**: If you had to recommend just 3 tracks from this batch for a playlist, which would they be and why?

Write with enthusiasm for the music. Use HTML formatting (h2, h3, p, ul, li, a, strong, em) suitable for email.

Posts to summarize:
{articles_markdown}`

// templateForType returns the type-specific template, or empty for general
// so resolution falls through to the global and default templates.
func templateForType(feedType string) string {
	switch feedType {
	case feed.TypeLinkblog:
		return linkblogPromptTemplate
	case feed.TypeMusic:
		return musicPromptTemplate
	default:
		return ""
	}
}
