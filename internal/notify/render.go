package notify

import (
	"fmt"
	"strings"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// Rendered is one ready-to-send notification body.
type Rendered struct {
	Title string
	Text  string
	URL   string
}

// RenderMarks groups change events by discipline and produces one message per
// discipline. Within a group events keep their diff order.
func RenderMarks(events []model.ChangeEvent) []Rendered {
	var order []string
	groups := make(map[string][]model.ChangeEvent)
	for _, ev := range events {
		title := ev.About.Title
		if _, ok := groups[title]; !ok {
			order = append(order, title)
		}
		groups[title] = append(groups[title], ev)
	}

	out := make([]Rendered, 0, len(order))
	for _, title := range order {
		var b strings.Builder
		for _, ev := range groups[title] {
			line := fmt.Sprintf("🔔 <b>%s</b>: <code>%s</code>", ev.About.Subtitle, ev.NewStatus)
			if ev.MaxStatus != "" {
				line += fmt.Sprintf(" / <code>%s</code>", ev.MaxStatus)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		out = append(out, Rendered{
			Title: title,
			Text:  strings.TrimRight(b.String(), "\n"),
			URL:   portal.MarksURL,
		})
	}
	return out
}

// RenderThreads aggregates homework or request changes into a single body.
// Status changes and unread-counter bumps render differently.
func RenderThreads(events []model.ChangeEvent) (Rendered, bool) {
	if len(events) == 0 {
		return Rendered{}, false
	}
	var b strings.Builder
	for _, ev := range events {
		switch ev.Kind {
		case model.StatusChanged:
			fmt.Fprintf(&b, "📄 <b>%s</b>\nStatus: <code>%s</code>\n", ev.About.Title, ev.NewStatus)
		case model.NewMessage:
			fmt.Fprintf(&b, "💬 <b>%s</b>\nNew messages: <code>%d</code>\n", ev.About.Title, ev.NewMessages)
		}
		if ev.About.Subtitle != "" {
			fmt.Fprintf(&b, "<i>%s</i>\n", ev.About.Subtitle)
		}
		b.WriteString("\n")
	}
	return Rendered{
		Text: strings.TrimRight(b.String(), "\n"),
		URL:  events[len(events)-1].About.URL,
	}, true
}

// RenderNews renders one published news item.
func RenderNews(item parse.NewsItem) Rendered {
	return Rendered{
		Text: fmt.Sprintf("📰 <b>%s</b>", item.Headline),
		URL:  item.URL,
	}
}
