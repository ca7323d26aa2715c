package richtext

// Mention node types recognized by the walker. Both carry the target user
// in attrs.id.
const (
	mentionType       = "mention"
	customMentionType = "customMention"
)

// MentionedUserIDs walks the whole tree and collects the user IDs of every
// mention node, de-duplicated in first-seen order. Mention nodes with a
// missing or empty id attribute are skipped. Children are always visited,
// including the children of mention nodes themselves.
func MentionedUserIDs(root Node) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	collectMentions(root, seen, &ids)
	return ids
}

func collectMentions(node Node, seen map[string]struct{}, ids *[]string) {
	if node.Type == mentionType || node.Type == customMentionType {
		if id := node.AttrString("id"); id != "" {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				*ids = append(*ids, id)
			}
		}
	}
	for _, child := range node.Content {
		collectMentions(child, seen, ids)
	}
}
