package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v18.0"

// defaultCountryCode is prepended to local numbers. Zimbabwe.
const defaultCountryCode = "263"

// ErrNotConfigured is returned when the client has no credentials.
var ErrNotConfigured = errors.New("whatsapp is not configured")

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
}

// NewClient builds a Cloud API client. Empty credentials produce a client
// whose sends fail with ErrNotConfigured, so callers can wire it
// unconditionally.
func NewClient(accessToken, phoneNumberID string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       defaultBaseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
	}
}

// Enabled reports whether credentials are present.
func (c *Client) Enabled() bool {
	return c.accessToken != "" && c.phoneNumberID != ""
}

// NormalizePhone converts a local or formatted number into the
// international digits-only form the Cloud API expects.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, defaultCountryCode):
		return n
	case strings.HasPrefix(n, "0"):
		return defaultCountryCode + n[1:]
	default:
		return defaultCountryCode + n
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type templatePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []templateComponent `json:"components,omitempty"`
	} `json:"template"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a plain text message and returns the delivery id.
func (c *Client) SendText(ctx context.Context, phone, body string) (string, error) {
	to := NormalizePhone(phone)
	if to == "" {
		return "", errors.New("empty phone number")
	}
	payload := textPayload{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = body
	return c.send(ctx, payload)
}

// SendTemplate delivers a pre-approved template message and returns the
// delivery id. Params fill the template's body placeholders in order.
func (c *Client) SendTemplate(ctx context.Context, phone, template, languageCode string, params ...string) (string, error) {
	to := NormalizePhone(phone)
	if to == "" {
		return "", errors.New("empty phone number")
	}
	if languageCode == "" {
		languageCode = "en"
	}
	payload := templatePayload{MessagingProduct: "whatsapp", To: to, Type: "template"}
	payload.Template.Name = template
	payload.Template.Language.Code = languageCode
	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParameter{Type: "text", Text: p})
		}
		payload.Template.Components = []templateComponent{component}
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload any) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("whatsapp send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		// delivery succeeded even if the id cannot be read back
		return "", nil
	}
	return body.Messages[0].ID, nil
}
