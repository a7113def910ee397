// Package cli implements the terminal front-end of multichat.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.design/x/clipboard"

	"github.com/malonaz/multichat/client"
	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/internal/cli"
	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/internal/fallback"
	"github.com/malonaz/multichat/internal/file"
	"github.com/malonaz/multichat/internal/logging"
	"github.com/malonaz/multichat/internal/markdown"
	"github.com/malonaz/multichat/store"
)

// NewChatCmd instantiates and returns the chat command.
func NewChatCmd(config *configuration.Config) *cobra.Command {
	var opts struct {
		Model          string
		ChatID         string
		Files          []string
		FileExtensions []string
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the multichat models from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(&logging.Opts{Level: config.Logging.Level, Format: config.Logging.Format})
			if err != nil {
				return errors.Wrap(err, "instantiating logger")
			}
			if opts.Model == "" {
				opts.Model = config.DefaultModel
			}
			session, err := newChatSession(config, opts.Model, log)
			if err != nil {
				return err
			}
			if err := session.attach(opts.Files, opts.FileExtensions...); err != nil {
				return err
			}
			return session.run(cmd.Context(), opts.ChatID)
		},
	}
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model used for new chats")
	cmd.Flags().StringVar(&opts.ChatID, "chat", "", "Chat to resume")
	cmd.Flags().StringSliceVar(&opts.Files, "file", nil, "Files attached to the first message, 'dir/...' recurses")
	cmd.Flags().StringSliceVar(&opts.FileExtensions, "ext", nil, "File extensions to accept")
	cmd.Flags().StringVar(&config.Client.ServerURL, "server", config.Client.ServerURL, "Address of the multichat server")
	return cmd
}

type chatSession struct {
	config      *configuration.Config
	model       string
	api         *client.API
	auth        *client.AuthController
	chats       *client.ChatController
	renderer    *markdown.Renderer
	historyFile string
	pending     []*store.Attachment
	log         zerolog.Logger
}

func newChatSession(config *configuration.Config, model string, log zerolog.Logger) (*chatSession, error) {
	httpClient := &http.Client{Timeout: config.Timeout()}
	api := client.NewAPI(config.Client.ServerURL, httpClient)
	renderer, err := markdown.NewRenderer(cli.Width())
	if err != nil {
		return nil, err
	}
	return &chatSession{
		config:      config,
		model:       model,
		api:         api,
		auth:        client.NewAuthController(api, client.NewSessionFile(config.Client.SessionFile), config.Client.TelegramInitData, log),
		renderer:    renderer,
		historyFile: filepath.Join(filepath.Dir(config.Client.SessionFile), "history"),
		log:         log,
	}, nil
}

func (s *chatSession) run(ctx context.Context, chatID string) error {
	user, err := s.authenticate(ctx)
	if err != nil {
		return err
	}
	text, err := s.textChain()
	if err != nil {
		return err
	}
	s.chats = client.NewChatController(s.api, text, user, &client.ChatControllerOpts{Model: s.model, Logger: s.log})

	chats, err := s.chats.LoadChats(ctx)
	if err != nil {
		return err
	}
	cli.Title("multichat: %s", displayName(user))
	if chatID != "" {
		if err := s.switchChat(ctx, chatID); err != nil {
			return err
		}
	} else if len(chats) > 0 {
		cli.Muted("%d chats, /chats to list them, /help for commands", len(chats))
	}

	for {
		line, err := cli.PromptUser(s.historyFile)
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if cmd, ok := parseCommand(line); ok {
			quit, err := s.handleCommand(ctx, cmd)
			if err != nil {
				cli.Error(err)
			}
			if quit {
				return nil
			}
			continue
		}
		reply, err := s.chats.Send(ctx, line, s.pending...)
		if err != nil {
			cli.Error(err)
			continue
		}
		s.pending = nil
		s.printReply(reply)
	}
}

// authenticate reuses a session, tries Telegram, then asks for credentials.
func (s *chatSession) authenticate(ctx context.Context) (*store.User, error) {
	user, err := s.auth.Bootstrap(ctx)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, client.ErrLoginRequired) {
		return nil, err
	}

	for {
		choice, err := cli.Select("Not logged in", []string{"Log in", "Register"})
		if err != nil {
			return nil, err
		}
		username, password, err := cli.AskCredentials()
		if err != nil {
			return nil, err
		}
		if choice == 0 {
			user, err = s.auth.Login(ctx, username, password)
		} else {
			user, err = s.auth.Register(ctx, username, password)
		}
		if err == nil {
			return user, nil
		}
		if !apperror.Is(err, apperror.KindAuth) && !apperror.Is(err, apperror.KindValidation) && !apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		cli.Error(err)
	}
}

func (s *chatSession) textChain() (*fallback.Chain[*client.TextRequest, string], error) {
	systemPrompt, err := client.NewSystemPrompt(s.config.Client.SystemPrompt, nil)
	if err != nil {
		return nil, err
	}
	return client.NewTextChain(&client.TextChainOpts{
		PrimaryURL:    s.config.Client.PrimaryProxyURL,
		PrimaryAPIKey: s.config.Client.PrimaryProxyAPIKey,
		SecondaryURL:  s.config.Client.SecondaryProxyURL,
		PersonalKey: func(ctx context.Context) (string, error) {
			keys, err := s.api.APIKeys(ctx)
			if err != nil {
				return "", err
			}
			return keys[store.APIKeyOpenRouter], nil
		},
		PublicURL:    s.config.Client.PublicInferenceURL,
		PublicModel:  s.config.Client.PublicModel,
		SystemPrompt: systemPrompt,
		HTTPClient:   &http.Client{Timeout: s.config.Timeout()},
		Logger:       s.log,
	}), nil
}

func (s *chatSession) handleCommand(ctx context.Context, cmd command) (bool, error) {
	switch cmd.name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h":
		cli.System("%s", helpText)
	case "new":
		chat, err := s.chats.NewChat(ctx, cmd.arg)
		if err != nil {
			return false, err
		}
		cli.System("new chat %s", chat.ID)
	case "chats":
		s.listChats()
	case "switch":
		return false, s.switchChatByIndex(ctx, cmd)
	case "delete":
		active := s.chats.Active()
		if active == nil {
			return false, apperror.Validation("no active chat")
		}
		if !cli.QueryUser(fmt.Sprintf("Delete %q?", active.Title)) {
			return false, nil
		}
		if err := s.chats.DeleteChat(ctx, active.ID); err != nil {
			return false, err
		}
		cli.System("deleted %s", active.ID)
	case "regen", "regenerate":
		reply, err := s.chats.Regenerate(ctx)
		if err != nil {
			return false, err
		}
		s.printReply(reply)
	case "copy":
		return false, s.copyCode(cmd)
	case "export":
		return false, s.export(cmd.arg)
	case "attach":
		if cmd.arg == "" {
			return false, apperror.Validation("usage: /attach <path>")
		}
		return false, s.attach(strings.Fields(cmd.arg))
	case "apikey":
		return false, s.apiKey(ctx, cmd.arg == "new")
	case "logout":
		if err := s.auth.Logout(ctx); err != nil {
			return false, err
		}
		cli.System("logged out")
		return true, nil
	default:
		return false, apperror.Validation("unknown command /%s, try /help", cmd.name)
	}
	return false, nil
}

func (s *chatSession) listChats() {
	chats := s.chats.Chats()
	if len(chats) == 0 {
		cli.Muted("no chats yet")
		return
	}
	active := s.chats.Active()
	for i, chat := range chats {
		marker := " "
		if active != nil && active.ID == chat.ID {
			marker = "*"
		}
		cli.Muted("%s %d. %s (%d messages, %s)", marker, i+1, chat.Title, len(chat.Messages), chat.UpdatedAt.Local().Format("Jan 2 15:04"))
	}
}

func (s *chatSession) switchChatByIndex(ctx context.Context, cmd command) error {
	chats := s.chats.Chats()
	if len(chats) == 0 {
		return apperror.Validation("no chats to switch to")
	}
	var index int
	if cmd.arg == "" {
		options := make([]string, 0, len(chats))
		for _, chat := range chats {
			options = append(options, chat.Title)
		}
		var err error
		if index, err = cli.Select("Chat", options); err != nil {
			return err
		}
	} else {
		var ok bool
		if index, ok = cmd.index(len(chats)); !ok {
			return apperror.Validation("no chat %s", cmd.arg)
		}
	}
	return s.switchChat(ctx, chats[index].ID)
}

func (s *chatSession) switchChat(ctx context.Context, chatID string) error {
	chat, err := s.chats.SwitchChat(ctx, chatID)
	if err != nil {
		return err
	}
	cli.Title("%s", chat.Title)
	for _, message := range chat.Messages {
		if message.Type == store.MessageTypeUser {
			cli.UserMessage(message.Text)
			for _, f := range message.Files {
				cli.Media("file", f.Name)
			}
			continue
		}
		s.printReply(message)
	}
	return nil
}

// attach reads files that are sent along with the next message.
func (s *chatSession) attach(paths []string, extensions ...string) error {
	if len(paths) == 0 {
		return nil
	}
	files, err := file.Read(paths, extensions...)
	if err != nil {
		return err
	}
	attachments, err := client.NewAttachments(files)
	if err != nil {
		return err
	}
	for _, attachment := range attachments {
		cli.Muted("attaching #%d: %s (%s)", len(s.pending)+1, attachment.Name, attachment.Type)
		s.pending = append(s.pending, attachment)
	}
	return nil
}

func (s *chatSession) printReply(message *store.Message) {
	if message.Text != "" {
		cli.AIMessage(s.renderer.Render(message.Text))
	}
	if message.Image != "" {
		cli.Media("image", message.Image)
	}
	if message.Video != "" {
		cli.Media("video", message.Video)
	}
	cli.Separator()
}

// copyCode copies a code block of the last reply to the clipboard.
func (s *chatSession) copyCode(cmd command) error {
	active := s.chats.Active()
	if active == nil {
		return apperror.Validation("no active chat")
	}
	var last *store.Message
	for i := len(active.Messages) - 1; i >= 0; i-- {
		if active.Messages[i].Type == store.MessageTypeAI {
			last = active.Messages[i]
			break
		}
	}
	if last == nil {
		return apperror.Validation("no reply to copy from")
	}
	codeBlocks := markdown.CodeBlocks(last.Text)
	index, ok := cmd.index(len(codeBlocks))
	if !ok {
		return apperror.Validation("no code block %s in the last reply", cmd.arg)
	}
	if err := clipboard.Init(); err != nil {
		return errors.Wrap(err, "initializing clipboard")
	}
	clipboard.Write(clipboard.FmtText, []byte(codeBlocks[index].Code))
	cli.System("copied %s block %d", codeBlocks[index].Extension(), index+1)
	return nil
}

// export writes the active chat as an HTML page.
func (s *chatSession) export(path string) error {
	active := s.chats.Active()
	if active == nil {
		return apperror.Validation("no active chat")
	}
	if path == "" {
		path = active.ID + ".html"
	}
	path, err := file.ExpandPath(path)
	if err != nil {
		return err
	}
	var buffer bytes.Buffer
	if err := client.ExportHTML(&buffer, active); err != nil {
		return err
	}
	if err := file.WriteAtomic(path, buffer.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	cli.System("exported %q to %s", active.Title, path)
	return nil
}

func (s *chatSession) apiKey(ctx context.Context, regenerate bool) error {
	user := s.auth.User()
	var apiKey string
	var err error
	if regenerate {
		apiKey, err = s.api.RegenerateUserAPIKey(ctx, user.Username)
	} else {
		apiKey, err = s.api.UserAPIKey(ctx, user.Username)
	}
	if err != nil {
		return err
	}
	cli.System("api key: %s", apiKey)
	return nil
}

func displayName(user *store.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Username
	}
	return name
}
