package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/client"
	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errNotLoggedIn = errors.New("not logged in, run `chatctl login` first")

func requireLogin(c *client.Client) error {
	if c.Token() == "" {
		return errNotLoggedIn
	}
	return nil
}

func parseUserFlag(fs *pflag.FlagSet, name string) (uuid.UUID, error) {
	raw, _ := fs.GetString(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s must be a user id: %w", name, err)
	}
	return id, nil
}

func runLogin(ctx context.Context, c *client.Client, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("--email and --password are required")
	}

	token, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	viper.Set("token", token)
	if err := saveConfig(); err != nil {
		return fmt.Errorf("logged in but failed to save token: %w", err)
	}

	fmt.Println("Login successful! Token saved for later commands.")
	return nil
}

func runLogout(ctx context.Context, c *client.Client, args []string) error {
	viper.Set("token", "")
	if err := saveConfig(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runMe(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\nid: %s\n", me.Name, me.Email, me.ID)
	return nil
}

func runSend(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	fs.String("to", "", "receiver user id")
	body := fs.StringP("message", "m", "", "message text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	to, err := parseUserFlag(fs, "to")
	if err != nil {
		return err
	}

	msg, err := c.Send(ctx, to, *body)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Message %d sent at %s\n", msg.ID, msg.Timestamp)
	return nil
}

func runUnread(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	unread, err := c.Unread(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total unread: %d\n", unread.Total)
	senders := make([]string, 0, len(unread.BySender))
	for id := range unread.BySender {
		senders = append(senders, id)
	}
	sort.Strings(senders)
	for _, id := range senders {
		fmt.Printf("  %s  %d\n", id, unread.BySender[id])
	}
	return nil
}

func runChats(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	conversations, err := c.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tONLINE\tUNREAD\tLAST MESSAGE\tAT")
	for _, conv := range conversations {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
			conv.ID, conv.Name, conv.IsOnline, conv.UnreadCount,
			conv.LastMessage.Text, localTime(conv.LastMessage.Timestamp))
	}
	return w.Flush()
}

func runOpen(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("open", pflag.ContinueOnError)
	fs.String("with", "", "counterpart user id")
	limit := fs.Int("limit", 0, "page size")
	before := fs.Uint64("before", 0, "return messages older than this id")
	after := fs.Uint64("after", 0, "return messages newer than this id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	with, err := parseUserFlag(fs, "with")
	if err != nil {
		return err
	}

	page, err := c.Open(ctx, with, models.HistoryQuery{After: *after, Before: *before, Limit: *limit})
	if err != nil {
		return err
	}
	printHistory(page, with)
	return nil
}

func printHistory(page *dto.History, counterpart uuid.UUID) {
	day := ""
	for _, m := range page.Messages {
		if m.Date != day {
			day = m.Date
			fmt.Printf("--- %s ---\n", day)
		}
		who := "You"
		if m.SenderID == counterpart {
			who = "Them"
		}
		fmt.Printf("[%s] %s: %s\n", localTime(m.Timestamp), who, m.Message)
	}
	if page.HasMore {
		fmt.Printf("(more: --before %d)\n", page.NextCursor)
	}
}

func runRead(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("read", pflag.ContinueOnError)
	fs.String("with", "", "counterpart user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	with, err := parseUserFlag(fs, "with")
	if err != nil {
		return err
	}

	marked, err := c.MarkRead(ctx, with)
	if err != nil {
		return err
	}
	fmt.Printf("Marked %d message(s) read.\n", marked)
	return nil
}

func runWatch(ctx context.Context, c *client.Client, args []string) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Watching for events. Press Ctrl+C to stop.")
	return c.Watch(ctx, me.ID, func(ev notifier.Event) {
		ts := time.Now().Format("15:04")
		switch ev.Event {
		case notifier.EventUnreadUpdated:
			var d notifier.UnreadUpdated
			if json.Unmarshal(ev.Data, &d) == nil {
				fmt.Printf("[%s] %d unread from %s\n", ts, d.UnreadCount, d.FromUserID)
				return
			}
		case notifier.EventMessagesRead:
			var d notifier.MessagesRead
			if json.Unmarshal(ev.Data, &d) == nil {
				fmt.Printf("[%s] %s read %d message(s)\n", ts, d.ReaderID, d.Count)
				return
			}
		}
		fmt.Printf("[%s] %s %s\n", ts, ev.Event, ev.Data)
	})
}

func localTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format("2006-01-02 15:04")
}
