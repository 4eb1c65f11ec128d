// tool-email reads mail over IMAP. Connection settings come from the
// environment: JARVIS_IMAP_HOST, JARVIS_IMAP_PORT (default 993),
// JARVIS_IMAP_EMAIL, JARVIS_IMAP_PASSWORD.
package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

func main() {
	toolproc.Main(map[string]toolproc.Handler{
		"list_mailboxes":  listMailboxes,
		"list_messages":   listMessages,
		"search_messages": searchMessages,
	})
}

func connect() (*client.Client, error) {
	host := os.Getenv("JARVIS_IMAP_HOST")
	email := os.Getenv("JARVIS_IMAP_EMAIL")
	password := os.Getenv("JARVIS_IMAP_PASSWORD")
	if host == "" || email == "" || password == "" {
		return nil, fmt.Errorf("JARVIS_IMAP_HOST, JARVIS_IMAP_EMAIL, and JARVIS_IMAP_PASSWORD must be set")
	}
	port := os.Getenv("JARVIS_IMAP_PORT")
	if port == "" {
		port = "993"
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%s", host, port), &tls.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", host, err)
	}
	if err := c.Login(email, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return c, nil
}

type mailboxList struct {
	Mailboxes []string `json:"mailboxes"`
}

func listMailboxes(req toolproc.Request) (any, error) {
	c, err := connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	boxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", boxes)
	}()

	result := mailboxList{Mailboxes: []string{}}
	for m := range boxes {
		result.Mailboxes = append(result.Mailboxes, m.Name)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}
	return result, nil
}

type messageSummary struct {
	UID     uint32 `json:"uid"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Seen    bool   `json:"seen"`
}

type messageList struct {
	Mailbox  string           `json:"mailbox"`
	Total    uint32           `json:"total"`
	Messages []messageSummary `json:"messages"`
}

func listMessages(req toolproc.Request) (any, error) {
	mailbox := req.String("mailbox", "INBOX")
	limit := clampLimit(req.Int("limit", 10))

	c, err := connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("selecting mailbox %s: %w", mailbox, err)
	}

	result := messageList{Mailbox: mailbox, Total: mbox.Messages, Messages: []messageSummary{}}
	if mbox.Messages == 0 {
		return result, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	messages, err := fetchSummaries(c, seqset)
	if err != nil {
		return nil, err
	}
	// Newest first
	for i := len(messages) - 1; i >= 0; i-- {
		result.Messages = append(result.Messages, messages[i])
	}
	return result, nil
}

func searchMessages(req toolproc.Request) (any, error) {
	query := strings.TrimSpace(req.String("query", ""))
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}
	mailbox := req.String("mailbox", "INBOX")
	limit := clampLimit(req.Int("limit", 10))

	c, err := connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("selecting mailbox %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Text = []string{query}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	result := messageList{Mailbox: mailbox, Total: mbox.Messages, Messages: []messageSummary{}}
	if len(ids) == 0 {
		return result, nil
	}
	if len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages, err := fetchSummaries(c, seqset)
	if err != nil {
		return nil, err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		result.Messages = append(result.Messages, messages[i])
	}
	return result, nil
}

func fetchSummaries(c *client.Client, seqset *imap.SeqSet) ([]messageSummary, error) {
	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid}, ch)
	}()

	var out []messageSummary
	for msg := range ch {
		s := messageSummary{UID: msg.Uid}
		if msg.Envelope != nil {
			s.Subject = msg.Envelope.Subject
			if !msg.Envelope.Date.IsZero() {
				s.Date = msg.Envelope.Date.UTC().Format(time.RFC3339)
			}
			if len(msg.Envelope.From) > 0 {
				s.From = msg.Envelope.From[0].Address()
			}
		}
		for _, f := range msg.Flags {
			if f == imap.SeenFlag {
				s.Seen = true
				break
			}
		}
		out = append(out, s)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}
