package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const modelImage = "gemini-2.5-flash-image"

const systemInstruction = `You are the rendering engine of a virtual fashion photo studio.
You receive garment reference photos plus a shoot instruction and return one
synthesized fashion photograph and a short description of the finished look.
Follow the instruction exactly; never alter the garments.`

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiVersion: strings.TrimSpace(opts.APIVersion),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = "https://generativelanguage.googleapis.com"
	}
	if c.apiVersion == "" {
		c.apiVersion = "v1beta"
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// APIError is a terminal response from the capability: the upstream answered
// and the answer is final for this invocation.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %d: %s", e.StatusCode, e.Message)
}

// Terminal marks the error as a final upstream verdict rather than a
// transport-level failure.
func (e *APIError) Terminal() bool { return true }

// GenerateShot performs exactly one generateContent call. Garment references
// are attached as image parts in order; the prompt addresses them by
// position. There is no retry here: a second submission could be billed
// upstream, so retrying is the caller's decision.
func (c *Client) GenerateShot(ctx context.Context, promptText string, garmentRefs []string) (string, string, error) {
	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		return "", "", errors.New("prompt is empty")
	}

	parts := []part{{Text: promptText}}
	for i, ref := range garmentRefs {
		parts = append(parts, part{Text: fmt.Sprintf("Garment #%d:", i+1)})
		parts = append(parts, garmentPart(ref))
	}

	resp, err := c.call(ctx, modelImage, apiRequest{
		Contents:          []content{{Role: "user", Parts: parts}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	})
	if err != nil {
		return "", "", err
	}

	description, images := resp.flatten()
	imageRef := ""
	if len(images) > 0 {
		imageRef = images[0]
	}
	return description, imageRef, nil
}

// garmentPart prefers inline data for data-URL references and falls back to
// a file URI for everything else (object store links).
func garmentPart(ref string) part {
	if inline, ok := dataURLToInlineData(ref, "image/jpeg"); ok {
		return part{InlineData: &inline}
	}
	return part{FileData: &fileData{FileURI: ref}}
}

func (c *Client) call(ctx context.Context, model string, payload apiRequest) (apiResponse, error) {
	if c.httpClient == nil {
		return apiResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("gemini request rejected", "status", resp.StatusCode)
		return apiResponse{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// A 2xx we cannot parse is still a final upstream answer.
		return apiResponse{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
		}
	}
	return decoded, nil
}

// Wire types for the generateContent endpoint.

type apiRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *blob     `json:"inlineData,omitempty"`
	FileData   *fileData `json:"fileData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// flatten joins the first candidate's text parts and renders its inline
// images as data URLs.
func (r apiResponse) flatten() (string, []string) {
	if len(r.Candidates) == 0 {
		return "", nil
	}

	var text strings.Builder
	var images []string
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" && p.InlineData.MimeType != "" {
			images = append(images, "data:"+p.InlineData.MimeType+";base64,"+p.InlineData.Data)
		}
	}
	return strings.TrimSpace(text.String()), images
}

func dataURLToInlineData(ref string, fallbackMime string) (blob, bool) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "data:") {
		return blob{}, false
	}

	meta, data, ok := strings.Cut(ref, ",")
	if !ok || data == "" {
		return blob{}, false
	}

	mimeType, _, _ := strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = fallbackMime
	}

	return blob{Data: data, MimeType: mimeType}, true
}
