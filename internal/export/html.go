package export

import (
	"fmt"
	"html"
	"strings"

	"inkwell/api/internal/richtext"
)

// RenderHTML converts a document body to HTML for export rendering.
func RenderHTML(root richtext.Node) string {
	return renderNode(root)
}

func renderNode(node richtext.Node) string {
	switch node.Type {
	case "doc":
		return renderContent(node.Content)
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(node.Content))
	case "heading":
		level := 1
		if attrs := node.Attrs; attrs != nil {
			if lvl, ok := attrs["level"].(float64); ok {
				level = int(lvl)
			}
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(node.Content), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(node.Content))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(node.Content))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(node.Content))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(node.Content))
	case "codeBlock":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(renderContent(node.Content)))
	case "text":
		return renderTextWithMarks(node.Text, node.Marks)
	case "mention", "customMention":
		label := node.AttrString("label")
		if label == "" {
			label = node.AttrString("id")
		}
		return fmt.Sprintf(`<span class="mention">@%s</span>`, html.EscapeString(label))
	case "hardBreak":
		return "<br>"
	case "table":
		return fmt.Sprintf("<table>\n%s</table>\n", renderContent(node.Content))
	case "tableRow":
		return fmt.Sprintf("<tr>\n%s</tr>\n", renderContent(node.Content))
	case "tableCell":
		return fmt.Sprintf("<td>%s</td>\n", renderContent(node.Content))
	case "tableHeader":
		return fmt.Sprintf("<th>%s</th>\n", renderContent(node.Content))
	case "horizontalRule":
		return "<hr>\n"
	case "":
		return ""
	default:
		// Unknown node type - render content if any
		return renderContent(node.Content)
	}
}

func renderContent(content []richtext.Node) string {
	var result strings.Builder
	for _, child := range content {
		result.WriteString(renderNode(child))
	}
	return result.String()
}

// renderTextWithMarks renders text with formatting marks applied from
// outside in.
func renderTextWithMarks(text string, marks []richtext.Mark) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)

	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			href := ""
			if attrs := marks[i].Attrs; attrs != nil {
				if hrefVal, ok := attrs["href"].(string); ok {
					href = hrefVal
				}
			}
			htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), htmlText)
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		}
	}

	return htmlText
}
