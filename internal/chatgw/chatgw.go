// Package chatgw is a thin, stateless wrapper over the chat platform's REST
// surface. Every send operation is fire-and-forget from the pipeline's
// perspective: transport errors are logged and swallowed. FetchFileBytes is
// the one exception — callers depend on its result, so it fails loudly.
package chatgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Button is one inline keyboard button. Data is echoed back as the
// callback's Data field when the user taps it.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Keyboard is a single row of buttons; the Ingress FSM never needs more
// than one row at a time (yes/no, automovel/imovel).
type Keyboard []Button

// Client talks to the chat platform's bot API over HTTP.
type Client struct {
	apiBase    string
	fileBase   string
	http       *http.Client
	fileClient *http.Client
	logger     *slog.Logger
}

// New builds a Client. botToken is embedded in both base URLs the way the
// platform's bot API expects. File downloads get a longer timeout than the
// send/ack calls since attachments can be a few megabytes on a slow link.
func New(apiRoot, botToken string, logger *slog.Logger) *Client {
	return &Client{
		apiBase:    fmt.Sprintf("%s/bot%s", apiRoot, botToken),
		fileBase:   fmt.Sprintf("%s/file/bot%s", apiRoot, botToken),
		http:       &http.Client{Timeout: 15 * time.Second},
		fileClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// SendText sends a plain text message. Errors are logged, not returned.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) {
	c.post(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

// SendTextWithButtons sends a text message with an inline keyboard attached.
func (c *Client) SendTextWithButtons(ctx context.Context, chatID int64, text string, keyboard Keyboard) {
	rows := [][]map[string]string{{}}
	for _, b := range keyboard {
		rows[0] = append(rows[0], map[string]string{"text": b.Text, "callback_data": b.Data})
	}

	c.post(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
		"reply_markup": map[string]any{
			"inline_keyboard": rows,
		},
	})
}

// EditTextAndClearButtons replaces a previously sent message's text and
// removes its keyboard in one call.
func (c *Client) EditTextAndClearButtons(ctx context.Context, chatID int64, messageID int64, text string) {
	c.post(ctx, "editMessageText", map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": [][]map[string]string{}},
	})
}

// ClearButtonsImmediately removes a message's keyboard without touching its
// text, used right after a button tap so a second tap has nothing to hit.
func (c *Client) ClearButtonsImmediately(ctx context.Context, chatID int64, messageID int64) {
	c.post(ctx, "editMessageReplyMarkup", map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": map[string]any{"inline_keyboard": [][]map[string]string{}},
	})
}

// AckCallback acknowledges a button tap so the platform stops showing a
// loading spinner on the client's button.
func (c *Client) AckCallback(ctx context.Context, callbackID string) {
	c.post(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	})
}

func (c *Client) post(ctx context.Context, method string, body map[string]any) {
	data, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("chatgw: encode request failed", "method", method, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+method, bytes.NewReader(data))
	if err != nil {
		c.logger.Error("chatgw: build request failed", "method", method, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("chatgw: request failed, swallowing", "method", method, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("chatgw: non-2xx response, swallowing", "method", method, "status", resp.StatusCode)
	}
}

// FetchFileBytes resolves file_id to a download path, then downloads the
// file. Unlike the send operations above, failures here are returned to the
// caller: the Ingress FSM has nothing useful to publish without the bytes.
func (c *Client) FetchFileBytes(ctx context.Context, fileID string) ([]byte, error) {
	filePath, err := c.resolveFilePath(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("chatgw: resolve file path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileBase+"/"+filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("chatgw: build file request: %w", err)
	}

	resp, err := c.fileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatgw: download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chatgw: download file: status %d", resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chatgw: read file body: %w", err)
	}
	return blob, nil
}

func (c *Client) resolveFilePath(ctx context.Context, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/getFile?file_id=%s", c.apiBase, fileID), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("getFile: status %d", resp.StatusCode)
	}

	var decoded struct {
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("getFile: decode response: %w", err)
	}
	return decoded.Result.FilePath, nil
}
