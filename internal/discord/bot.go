package discord

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/satindergrewal/tunegen/internal/musicgen"
)

// DefaultWebhookURL is the base for interaction follow-up messages.
const DefaultWebhookURL = "https://discord.com/api/v10/webhooks"

const (
	maxDuration  = 120 // seconds
	maxBodyBytes = 1 << 20
)

// Generator produces a clip for a slash command.
type Generator interface {
	GenerateWith(ctx context.Context, prompt string, opts musicgen.GenerateOptions) ([]byte, error)
}

// Bot answers Discord slash-command interactions. Commands are acknowledged
// with a deferred response; the clip is generated in the background and
// posted to the interaction webhook as a file attachment.
type Bot struct {
	publicKey ed25519.PublicKey
	gen       Generator
	duration  int

	// WebhookURL overrides DefaultWebhookURL.
	WebhookURL string
	HTTPClient *http.Client

	ctx context.Context
	wg  sync.WaitGroup
}

// NewBot creates an interactions handler. Background generations are
// cancelled when ctx is done.
func NewBot(ctx context.Context, publicKey ed25519.PublicKey, gen Generator, defaultDuration int) *Bot {
	if defaultDuration <= 0 {
		defaultDuration = 10
	}
	return &Bot{
		publicKey:  publicKey,
		gen:        gen,
		duration:   defaultDuration,
		WebhookURL: DefaultWebhookURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		ctx:        ctx,
	}
}

// Wait blocks until every background generation has posted its follow-up.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// followup is the payload_json part of a follow-up message.
type followup struct {
	Content string `json:"content"`
	TTS     bool   `json:"tts"`
}

// command is a parsed slash command.
type command struct {
	prompt   string
	duration int
	format   string
	appID    string
	token    string
	userID   string
}

func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if len(b.publicKey) != ed25519.PublicKeySize || !discordgo.VerifyInteraction(r, b.publicKey) {
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	var in discordgo.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "invalid interaction", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case discordgo.InteractionPing:
		writeResponse(w, discordgo.InteractionResponsePong)
	case discordgo.InteractionApplicationCommand:
		cmd, err := b.parseCommand(&in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.wg.Add(1)
		go b.fulfil(cmd)
		writeResponse(w, discordgo.InteractionResponseDeferredChannelMessageWithSource)
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}

func writeResponse(w http.ResponseWriter, t discordgo.InteractionResponseType) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(discordgo.InteractionResponse{Type: t})
}

func (b *Bot) parseCommand(in *discordgo.Interaction) (command, error) {
	cmd := command{
		duration: b.duration,
		format:   "wav",
		appID:    in.AppID,
		token:    in.Token,
	}
	switch {
	case in.Member != nil && in.Member.User != nil:
		cmd.userID = in.Member.User.ID
	case in.User != nil:
		cmd.userID = in.User.ID
	}

	for _, opt := range in.ApplicationCommandData().Options {
		switch opt.Name {
		case "prompt":
			if opt.Type == discordgo.ApplicationCommandOptionString {
				cmd.prompt = strings.TrimSpace(opt.StringValue())
			}
		case "duration":
			if opt.Type == discordgo.ApplicationCommandOptionInteger {
				cmd.duration = min(max(int(opt.IntValue()), 1), maxDuration)
			}
		case "format":
			if opt.Type == discordgo.ApplicationCommandOptionString {
				cmd.format = strings.ToLower(opt.StringValue())
			}
		}
	}

	if cmd.prompt == "" {
		return cmd, errors.New("prompt option is required")
	}
	if cmd.format != "wav" && cmd.format != "mp3" {
		return cmd, fmt.Errorf("format must be wav or mp3, got %q", cmd.format)
	}
	if cmd.appID == "" || cmd.token == "" {
		return cmd, errors.New("interaction has no application id or token")
	}
	return cmd, nil
}

// fulfil generates the clip and posts it as the interaction follow-up. A
// failed generation is reported in the follow-up text.
func (b *Bot) fulfil(cmd command) {
	defer b.wg.Done()

	log.Printf("Discord command from %s: %q (%ds, %s)", cmd.userID, cmd.prompt, cmd.duration, cmd.format)
	clip, err := b.gen.GenerateWith(b.ctx, cmd.prompt, musicgen.GenerateOptions{
		Duration: cmd.duration,
		Format:   cmd.format,
	})

	content := fmt.Sprintf("<@%s> %s", cmd.userID, cmd.prompt)
	if err != nil {
		log.Printf("Discord generation failed: %v", err)
		content = fmt.Sprintf("<@%s> could not generate %q: %v", cmd.userID, cmd.prompt, err)
		clip = nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), 30*time.Second)
	defer cancel()
	if err := b.postFollowup(ctx, cmd, content, clip); err != nil {
		log.Printf("Discord follow-up failed: %v", err)
	}
}

func (b *Bot) postFollowup(ctx context.Context, cmd command, content string, clip []byte) error {
	payload, err := json.Marshal(followup{Content: content})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="payload_json"`)
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("payload part: %w", err)
	}
	part.Write(payload)

	if clip != nil {
		h = make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="output.%s"`, cmd.format))
		h.Set("Content-Type", "audio/"+cmd.format)
		part, err = mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("file part: %w", err)
		}
		part.Write(clip)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(b.WebhookURL, "/"), cmd.appID, cmd.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post follow-up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("follow-up status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
