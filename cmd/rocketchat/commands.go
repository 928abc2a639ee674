package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/HappyTetrahedron/rocketchat-async/internal/config"
	"github.com/HappyTetrahedron/rocketchat-async/internal/transport"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/realtime"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/rocketchat"
)

// CLI runs one command against a freshly logged-in session.
type CLI struct {
	cfg    config.Config
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

func (c *CLI) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "channels":
		return c.withSession(ctx, c.channels)
	case "send":
		fs := flag.NewFlagSet("send", flag.ContinueOnError)
		channel := fs.String("channel", "", "Channel id")
		text := fs.String("text", "", "Message text")
		thread := fs.String("thread", "", "Parent message id to reply in a thread")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *channel == "" || *text == "" {
			return fmt.Errorf("send: -channel and -text are required")
		}
		return c.withSession(ctx, func(ctx context.Context, s *rocketchat.Client) error {
			return c.send(ctx, s, *channel, *text, *thread)
		})
	case "react":
		fs := flag.NewFlagSet("react", flag.ContinueOnError)
		message := fs.String("message", "", "Message id")
		emoji := fs.String("emoji", protocol.EmojiThumbsUp.String(), "Reaction, e.g. :penguin:")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *message == "" {
			return fmt.Errorf("react: -message is required")
		}
		return c.withSession(ctx, func(ctx context.Context, s *rocketchat.Client) error {
			return s.SendReaction(ctx, *message, protocol.Emoji(*emoji))
		})
	case "typing":
		fs := flag.NewFlagSet("typing", flag.ContinueOnError)
		channel := fs.String("channel", "", "Channel id")
		username := fs.String("username", c.cfg.Username, "Username shown as typing")
		stopTyping := fs.Bool("stop", false, "Announce that typing stopped")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *channel == "" {
			return fmt.Errorf("typing: -channel is required")
		}
		if *username == "" {
			return fmt.Errorf("typing: -username is required when logging in with a token")
		}
		return c.withSession(ctx, func(ctx context.Context, s *rocketchat.Client) error {
			return s.SendTyping(ctx, *channel, *username, !*stopTyping)
		})
	case "listen":
		fs := flag.NewFlagSet("listen", flag.ContinueOnError)
		channel := fs.String("channel", "", "Channel id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *channel == "" {
			return fmt.Errorf("listen: -channel is required")
		}
		return c.withSession(ctx, func(ctx context.Context, s *rocketchat.Client) error {
			return c.listen(ctx, s, *channel)
		})
	case "watch":
		return c.withSession(ctx, c.watch)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *CLI) withSession(ctx context.Context, fn func(context.Context, *rocketchat.Client) error) error {
	session, err := rocketchat.Dial(ctx, c.cfg.ServerURL, rocketchat.Options{
		Transport:      transport.Kind(c.cfg.Transport),
		CallTimeout:    c.cfg.CallTimeout,
		SendRate:       c.cfg.SendRate,
		SendBurst:      c.cfg.SendBurst,
		MaxMessageSize: c.cfg.MaxMessageSize,
		Logger:         c.logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	creds := realtime.PasswordCredentials(c.cfg.Username, c.cfg.Password)
	if c.cfg.Token != "" {
		creds = realtime.TokenCredentials(c.cfg.Token)
	}
	if err := session.Start(ctx, creds); err != nil {
		return err
	}
	return fn(ctx, session)
}

func (c *CLI) channels(ctx context.Context, s *rocketchat.Client) error {
	channels, err := s.GetChannels(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"ID", "Type", "Direct"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, ch := range channels {
		table.Append([]string{ch.ID, ch.Type, fmt.Sprint(ch.IsDirect())})
	}
	table.Render()
	return nil
}

func (c *CLI) send(ctx context.Context, s *rocketchat.Client, channel, text, thread string) error {
	var extra map[string]any
	if thread != "" {
		extra = map[string]any{"tmid": thread}
	}
	id, err := s.SendMessage(ctx, channel, text, extra)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

// listen prints the channel's messages and sends every line read from input
// until input ends or ctx is cancelled.
func (c *CLI) listen(ctx context.Context, s *rocketchat.Client, channel string) error {
	self := s.UserID()
	subID, err := s.SubscribeToChannelMessages(ctx, channel, func(e realtime.MessageEvent) {
		switch {
		case e.IsUserRemoval():
			fmt.Fprintf(c.out, "*** %s was removed ***\n", e.Text)
		case e.SenderID == self:
		default:
			fmt.Fprintf(c.out, "[%s]: %s\n", sender(e), e.Text)
		}
	})
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	lines := readLines(c.in, stop)

	for {
		select {
		case <-ctx.Done():
			return s.Unsubscribe(context.WithoutCancel(ctx), subID)
		case <-s.Done():
			return s.Err()
		case line, ok := <-lines:
			if !ok {
				return s.Unsubscribe(ctx, subID)
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if _, err := s.SendMessage(ctx, channel, text, nil); err != nil {
				c.logger.Warn("failed to send message", "channel", channel, "error", err)
			}
		}
	}
}

func (c *CLI) watch(ctx context.Context, s *rocketchat.Client) error {
	_, err := s.SubscribeToChannelChanges(ctx, func(ch realtime.ChannelChange) {
		fmt.Fprintf(c.out, "%s %s (%s)\n", ch.Action, ch.ChannelID, ch.ChannelType)
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.Done():
		return s.Err()
	}
}

// readLines streams lines of r until r ends or stop is closed.
func readLines(r io.Reader, stop <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()
	return lines
}

func sender(e realtime.MessageEvent) string {
	if e.SenderUsername != "" {
		return e.SenderUsername
	}
	return e.SenderID
}
