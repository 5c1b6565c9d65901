package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/charmbracelet/lipgloss"

	"github.com/hembot/hembot/src/app"
	"github.com/hembot/hembot/src/dialog"
	"github.com/hembot/hembot/src/storage"
)

// ChatCmd is the interactive terminal chat.
type ChatCmd struct {
	Resume    bool   `short:"r" help:"Resume the most recent session"`
	SessionID string `help:"Resume a specific session by ID"`
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func (c *ChatCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	session, err := c.openSession(ctx, application)
	if err != nil {
		return err
	}
	state := session.State.State

	converter := md.NewConverter("", true, nil)

	fmt.Println(botStyle.Render("hembot") + " — furniture shopping assistant")
	fmt.Println(faintStyle.Render("session " + session.ID + " — type 'exit' to quit"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		reply, newState := application.Orchestrator.ProcessTurn(ctx, query, state)
		state = newState

		if err := storage.UpdateSessionState(ctx, application.Store.DB(), session.ID, state); err != nil {
			logger.Warn("failed to persist session", "error", err)
		}
		for _, m := range []storage.Message{
			{SessionID: session.ID, Role: dialog.RoleUser, Content: query},
			{SessionID: session.ID, Role: dialog.RoleAssistant, Content: reply},
		} {
			msg := m
			if err := storage.CreateMessage(ctx, application.Store.DB(), &msg); err != nil {
				logger.Warn("failed to store message", "error", err)
			}
		}

		fmt.Println(botStyle.Render("bot> ") + renderReply(converter, reply))
	}
	return scanner.Err()
}

// renderReply converts the HTML reply to terminal-friendly markdown text.
func renderReply(converter *md.Converter, html string) string {
	text, err := converter.ConvertString(html)
	if err != nil {
		return html
	}
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	return text
}

func (c *ChatCmd) openSession(ctx context.Context, application *app.App) (*storage.Session, error) {
	db := application.Store.DB()

	if c.SessionID != "" {
		session, err := storage.GetSessionByID(ctx, db, c.SessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, fmt.Errorf("session %s not found", c.SessionID)
		}
		return session, nil
	}
	if c.Resume {
		session, err := storage.GetLatestSession(ctx, db)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	session := &storage.Session{State: storage.JSONState{State: dialog.NewState()}}
	if err := storage.CreateSession(ctx, db, session); err != nil {
		return nil, err
	}
	return session, nil
}
