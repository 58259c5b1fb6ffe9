// Package markdown renders the Markdown source written in the blog editor to
// HTML. Only a safe subset is supported; raw HTML in the source is escaped.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`_([^_]+)_`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reImg              = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)(\^)?`)
	reOrderedItem      = regexp.MustCompile(`^(\d+)\.\s`)
	reHeading          = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
)

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ToHTML(md))
		return err
	})
}

// ToHTML renders md as HTML.
func ToHTML(md string) string {
	var buf bytes.Buffer
	Render(&buf, md)
	return buf.String()
}

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrdered
	blockQuote
	blockCode
)

var closers = map[block]string{
	blockPara:    "</p>",
	blockList:    "</ul>",
	blockOrdered: "</ol>",
	blockQuote:   "</blockquote>",
	blockCode:    "</code></pre>",
}

type renderer struct {
	buf    *bytes.Buffer
	open   block
	images int
}

func (r *renderer) close() {
	if s, ok := closers[r.open]; ok {
		r.buf.WriteString(s)
	}
	r.open = blockNone
}

// enter closes the current block unless it is already b and opens b with tag.
func (r *renderer) enter(b block, tag string) bool {
	if r.open == b {
		return false
	}
	r.close()
	r.buf.WriteString(tag)
	r.open = b
	return true
}

func (r *renderer) inline(s string) string {
	return FormatInline(s, &r.images)
}

// Render writes the HTML representation of md to buf.
func Render(buf *bytes.Buffer, md string) {
	r := &renderer{buf: buf}
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimRight(raw, "\r")
		r.line(line)
	}
	r.close()
}

func (r *renderer) line(line string) {
	if strings.HasPrefix(line, "```") {
		if r.open == blockCode {
			r.close()
			return
		}
		r.close()
		if lang := strings.TrimSpace(line[3:]); lang != "" {
			r.buf.WriteString(`<pre class="code-block"><code class="language-` + html.EscapeString(lang) + `">`)
		} else {
			r.buf.WriteString(`<pre class="code-block"><code>`)
		}
		r.open = blockCode
		return
	}
	if r.open == blockCode {
		r.buf.WriteString(html.EscapeString(line))
		r.buf.WriteByte('\n')
		return
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		r.close()
	case strings.HasPrefix(trimmed, "---"):
		r.close()
		r.buf.WriteString("<hr/>")
	case reHeading.MatchString(trimmed):
		r.close()
		m := reHeading.FindStringSubmatch(trimmed)
		// Post titles are the page h1, so content headings start at h2.
		level := strconv.Itoa(len(m[1]) + 1)
		r.buf.WriteString("<h" + level + ">" + r.inline(strings.TrimSpace(m[2])) + "</h" + level + ">")
	case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
		r.enter(blockList, "<ul>")
		r.buf.WriteString("<li>" + r.inline(strings.TrimSpace(trimmed[2:])) + "</li>")
	case reOrderedItem.MatchString(trimmed):
		r.enter(blockOrdered, "<ol>")
		r.buf.WriteString("<li>" + r.inline(strings.TrimSpace(reOrderedItem.ReplaceAllString(trimmed, ""))) + "</li>")
	case strings.HasPrefix(trimmed, ">"):
		if !r.enter(blockQuote, "<blockquote>") {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(r.inline(strings.TrimSpace(trimmed[1:])))
	default:
		if !r.enter(blockPara, "<p>") {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(r.inline(trimmed))
	}
}

// applyOutsideTags applies fn only to text segments outside HTML tags,
// so that formatting regexes never touch URLs inside href attributes.
func applyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// FormatInline applies inline formatting (images, links, code, bold,
// italic) to s. imageCount tracks images across a document so only the
// first one is fetched eagerly.
func FormatInline(s string, imageCount *int) string {
	escaped := html.EscapeString(s)

	escaped = reImg.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reImg.FindStringSubmatch(m)
		src := SafeURL(match[2])
		if src == "" {
			return match[1]
		}
		*imageCount++
		load := `loading="lazy"`
		if *imageCount == 1 {
			load = `fetchpriority="high"`
		}
		return `<img ` + load + ` alt="` + match[1] + `" src="` + src + `" decoding="async"/>`
	})
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		attrs := ""
		if match[3] == "^" {
			attrs = ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>` + match[1] + `</a>`
	})

	// Inline code is swapped for placeholders so bold and italic never
	// apply inside backticks.
	var codes []string
	escaped = reInlineCode.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		codes = append(codes, "<code>"+match[1]+"</code>")
		return "\x00" + strconv.Itoa(len(codes)-1) + "\x00"
	})
	escaped = applyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})
	for i, code := range codes {
		escaped = strings.Replace(escaped, "\x00"+strconv.Itoa(i)+"\x00", code, 1)
	}
	return escaped
}

// SafeURL returns raw escaped for an HTML attribute, or "" when its scheme
// is not one of http, https, mailto or tel. Site-relative URLs are allowed.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if (strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//")) || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// Excerpt returns the plain text of md cut to at most n runes on a word
// boundary, with an ellipsis when cut. Code blocks and images are skipped.
func Excerpt(md string, n int) string {
	var words []string
	inCode := false
	for _, line := range strings.Split(md, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") {
			inCode = !inCode
			continue
		}
		if inCode || t == "" || strings.HasPrefix(t, "---") {
			continue
		}
		t = strings.TrimLeft(t, "#>-* ")
		t = reOrderedItem.ReplaceAllString(t, "")
		t = reImg.ReplaceAllString(t, "")
		t = reLink.ReplaceAllString(t, "$1")
		t = strings.NewReplacer("**", "", "__", "", "`", "", "*", "").Replace(t)
		words = append(words, strings.Fields(t)...)
	}
	text := strings.Join(words, " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
