package chat

import (
	"fmt"

	"SahakariChat/internal/api"
	"SahakariChat/internal/session"

	"github.com/fatih/color"
)

// renderNew prints every message appended since the last render. User
// messages are skipped; they are already on screen as typed.
func (c *Client) renderNew() {
	history := c.session.History()
	for _, msg := range history[c.rendered:] {
		c.renderMessage(msg)
	}
	c.rendered = len(history)
}

func (c *Client) renderMessage(msg session.Message) {
	switch msg.Kind {
	case session.KindAssistant:
		color.Cyan("Bot:")
		fmt.Println(msg.Content)
		if n := len(msg.Citations); n > 0 {
			plural := ""
			if n > 1 {
				plural = "s"
			}
			fmt.Printf("  %d source%s (use /citations %d to show)\n", n, plural, msg.ID)
			if c.session.CitationsShown(msg.ID) {
				c.renderCitations(msg)
			}
		}
		fmt.Println()

	case session.KindSystem:
		color.Blue("%s", msg.Content)
		fmt.Println()

	case session.KindError:
		color.Red("Error: %s", msg.Content)
		fmt.Println()
	}
}

// renderCitations prints a message's sources in list form, mirroring what
// the backend returns per citation.
func (c *Client) renderCitations(msg session.Message) {
	for i, ct := range msg.Citations {
		c.renderCitation(i+1, ct)
	}
}

func (c *Client) renderCitation(index int, ct api.Citation) {
	label := ct.Source
	if ct.Type != "" {
		label = fmt.Sprintf("%s [%s]", label, ct.Type)
	}
	fmt.Printf("  Source %d: %s\n", index, label)
	if ct.Page != "" {
		fmt.Printf("    Page/Sheet: %s\n", ct.Page)
	}
	if ct.RelevanceScore != nil {
		fmt.Printf("    Relevance: %.1f%%\n", *ct.RelevanceScore*100)
	}
	if ct.Excerpt != "" {
		fmt.Printf("    %q\n", ct.Excerpt)
	}
}

// renderDocuments prints the registry's cached list.
func (c *Client) renderDocuments(docs []api.DocumentRecord) {
	if len(docs) == 0 {
		fmt.Println("No documents uploaded yet.")
		return
	}
	fmt.Printf("Uploaded documents (%d):\n", len(docs))
	for _, doc := range docs {
		if doc.Size > 0 {
			fmt.Printf("  - %s (%.1f KB)\n", doc.Filename, float64(doc.Size)/1024)
		} else {
			fmt.Printf("  - %s\n", doc.Filename)
		}
	}
}
