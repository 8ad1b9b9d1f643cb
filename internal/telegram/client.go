package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram hard limits.
const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

// Client wraps the Bot API for the shoot workflow: receiving garment photo
// uploads and delivering the finished shot back. Garment downloads are
// returned as data URLs so the rest of the pipeline only ever sees URIs.
type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:        bot,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	if opts.Timeout > 0 {
		cfg.Timeout = int(opts.Timeout.Seconds())
	}
	return c.bot.GetUpdatesChan(cfg)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

// SendUploadingPhoto shows the "sending a photo" chat action while a shoot is
// in flight. Best effort.
func (c *Client) SendUploadingPhoto(chatID int64) {
	if _, err := c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto)); err != nil {
		c.logger.Debug("chat action failed", "err", err)
	}
}

// SendText delivers text, chunked at the message size limit.
func (c *Client) SendText(chatID int64, text string) error {
	for _, chunk := range chunkRunes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendPhotoDataURL uploads a data-URL image as a photo with an optional
// caption.
func (c *Client) SendPhotoDataURL(chatID int64, dataURL string, caption string) error {
	mimeType, payload, err := splitDataURL(dataURL)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  fileNameFor(mimeType),
		Bytes: raw,
	})
	if caption != "" {
		chunks := chunkRunes(caption, maxCaptionBytes)
		photo.Caption = chunks[0]
	}

	if _, err := c.bot.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// DownloadFileDataURL fetches a Telegram upload and returns it as a data URL,
// a valid garment reference for the generation pipeline.
func (c *Client) DownloadFileDataURL(ctx context.Context, fileID string) (string, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read file body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("file download %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	mimeType := bareMime(resp.Header.Get("content-type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = bareMime(http.DetectContentType(raw))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// bareMime strips parameters like "; charset=...".
func bareMime(value string) string {
	value, _, _ = strings.Cut(value, ";")
	return strings.TrimSpace(value)
}

func fileNameFor(mimeType string) string {
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return "shot" + exts[0]
	}
	return "shot.jpg"
}

func splitDataURL(value string) (mimeType string, payload string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", errors.New("empty image reference")
	}
	if !strings.HasPrefix(value, "data:") {
		// Raw base64 without a scheme still renders as a jpeg.
		return "image/jpeg", value, nil
	}

	meta, payload, ok := strings.Cut(value, ",")
	if !ok {
		return "", "", errors.New("malformed data url")
	}

	mimeType, _, _ = strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType, payload, nil
}

// chunkRunes splits text into pieces of at most maxBytes without breaking a
// rune. Always returns at least one element.
func chunkRunes(text string, maxBytes int) []string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(text) {
		end := start + maxBytes
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == start {
			end = start + maxBytes
		}
		out = append(out, text[start:end])
		start = end
	}
	return out
}
