package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"briefbot/types"
)

// Fingerprint computes a deterministic content hash for a post. The richest
// available text field wins (full article text, then content, then
// description); the chosen text is lowercased and has whitespace runs
// collapsed before hashing, so case and spacing differences never change the
// hash. Posts with no body text at all fall back to hashing the lowercased
// title.
func Fingerprint(post *types.Post) string {
	text := normalizeText(extractBody(post))
	if text == "" {
		text = normalizeText(post.Title)
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// extractBody picks the most comprehensive text content from the post.
// Priority order: FullArticleText > Content > Description.
func extractBody(post *types.Post) string {
	if post.FullArticleText != "" {
		return post.FullArticleText
	}
	if post.Content != "" {
		return post.Content
	}
	return post.Description
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	// collapse multiple whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
