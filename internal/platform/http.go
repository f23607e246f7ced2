package platform

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

	"github.com/dmitrijs2005/lanpos/internal/models"
)

// IdempotencyHeader carries IdempotencyKey on every submission.
const IdempotencyHeader = "Idempotency-Key"

// HTTPAdapter posts orders as JSON to a REST endpoint:
//
//	POST {endpoint}/orders   -> 200/201 {"id": "..."}; 409 {"id": "..."} for a replay
//	GET  {endpoint}/health   -> 2xx
type HTTPAdapter struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPAdapter(endpoint, apiKey string, timeout time.Duration) *HTTPAdapter {
	return &HTTPAdapter{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type orderPayload struct {
	ExternalID     string            `json:"external_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	RegisterID     string            `json:"register_id"`
	CashierID      string            `json:"cashier_id"`
	CustomerRef    string            `json:"customer_ref,omitempty"`
	Items          []models.LineItem `json:"items"`
	DiscountCode   string            `json:"discount_code,omitempty"`
	Discount       string            `json:"discount"`
	Total          string            `json:"total"`
	PaymentMethod  string            `json:"payment_method"`
	Note           string            `json:"note,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (a *HTTPAdapter) SubmitOrder(ctx context.Context, o *models.Order) (string, error) {
	key := IdempotencyKey(o.ID)
	body, err := json.Marshal(orderPayload{
		ExternalID:     o.ID,
		IdempotencyKey: key,
		RegisterID:     o.RegisterID,
		CashierID:      o.CashierID,
		CustomerRef:    o.CustomerRef,
		Items:          o.Items,
		DiscountCode:   o.DiscountCode,
		Discount:       models.Cents(o.Discount),
		Total:          models.Cents(o.Total()),
		PaymentMethod:  o.PaymentMethod,
		Note:           o.Note,
		CreatedAt:      o.CreatedAt,
	})
	if err != nil {
		return "", terminal(fmt.Errorf("encode order: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", terminal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, key)
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", retryable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", retryable(fmt.Errorf("read response: %w", err))
	}
	var out submitResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusConflict && out.ID != "":
		if out.ID == "" {
			return "", retryable(errors.New("platform returned no order id"))
		}
		return out.ID, nil
	}
	return "", statusError(resp.StatusCode, out.Error, raw)
}

func (a *HTTPAdapter) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	a.authorize(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return retryable(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return statusError(resp.StatusCode, "", nil)
	}
	return nil
}

func (a *HTTPAdapter) authorize(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}

// statusError: 408, 429 and 5xx are retryable; every other status is a
// rejection of the order itself.
func statusError(code int, msg string, raw []byte) error {
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	err := fmt.Errorf("platform responded %d: %s", code, msg)
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500 {
		return retryable(err)
	}
	return terminal(err)
}
