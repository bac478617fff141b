package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/clinitech/frontoffice/internal/platform/apiclient"
)

// SMSSender delivers a message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ClickSendURL is the public ClickSend REST endpoint.
const ClickSendURL = "https://rest.clicksend.com"

// ClickSendConfig holds gateway credentials and the outbound rate limit.
type ClickSendConfig struct {
	Username string
	APIKey   string
	From     string
	RPS      float64
	Burst    int
	BaseURL  string
	Timeout  time.Duration
}

// ClickSendSender delivers SMS through the ClickSend v3 API.
type ClickSendSender struct {
	api     *apiclient.Client
	from    string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewClickSendSender(cfg ClickSendConfig, logger zerolog.Logger) *ClickSendSender {
	base := cfg.BaseURL
	if base == "" {
		base = ClickSendURL
	}
	opts := []apiclient.Option{
		apiclient.WithBasicAuth(cfg.Username, cfg.APIKey),
		apiclient.WithLogger(logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(cfg.Timeout))
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &ClickSendSender{
		api:     apiclient.New(base, opts...),
		from:    cfg.From,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		logger:  logger,
	}
}

type clickSendMessage struct {
	Source string `json:"source"`
	From   string `json:"from,omitempty"`
	Body   string `json:"body"`
	To     string `json:"to"`
}

type clickSendRequest struct {
	Messages []clickSendMessage `json:"messages"`
}

type clickSendResponse struct {
	ResponseCode string `json:"response_code"`
	ResponseMsg  string `json:"response_msg"`
	Data         struct {
		Messages []struct {
			MessageID string `json:"message_id"`
			Status    string `json:"status"`
		} `json:"messages"`
	} `json:"data"`
}

// SendSMS waits for the rate limiter, then submits one message.
func (s *ClickSendSender) SendSMS(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" || body == "" {
		return fmt.Errorf("%w: recipient and body are required", ErrDeliveryFailed)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit: %w", err)
	}

	req := clickSendRequest{Messages: []clickSendMessage{{Source: "sdk", From: s.from, Body: body, To: to}}}
	var resp clickSendResponse
	if err := s.api.Post(ctx, "/v3/sms/send", req, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if resp.ResponseCode != "" && resp.ResponseCode != "SUCCESS" {
		return fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, resp.ResponseCode, resp.ResponseMsg)
	}
	for _, m := range resp.Data.Messages {
		if m.Status != "SUCCESS" {
			return fmt.Errorf("%w: message status %s", ErrDeliveryFailed, m.Status)
		}
		s.logger.Info().Str("message_id", m.MessageID).Msg("sms queued with gateway")
	}
	return nil
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
