package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	pageSize       = 100
)

// LineItem is one purchased line as the provider reports it.
type LineItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	AmountTotal int64  `json:"amount_total"`
	Price       *Price `json:"price"`
}

type Price struct {
	ID       string   `json:"id"`
	Nickname string   `json:"nickname"`
	Product  *Product `json:"product"`
}

type Product struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// ProductName returns the expanded product's name, if any.
func (li LineItem) ProductName() string {
	if li.Price == nil || li.Price.Product == nil {
		return ""
	}
	return li.Price.Product.Name
}

// ProductMetadata returns the expanded product's metadata, if any.
func (li LineItem) ProductMetadata() map[string]string {
	if li.Price == nil || li.Price.Product == nil {
		return nil
	}
	return li.Price.Product.Metadata
}

// PriceNickname returns the price nickname, if any.
func (li LineItem) PriceNickname() string {
	if li.Price == nil {
		return ""
	}
	return li.Price.Nickname
}

type lineItemList struct {
	Data    []LineItem `json:"data"`
	HasMore bool       `json:"has_more"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a payment provider client
func NewClient(baseURL, secretKey string) *Client {
	if secretKey == "" {
		util.GetLogger().Warn("Payment provider secret key is empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListLineItems reads every line item of a checkout session with the
// product expanded, following pagination.
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	log := util.LoggerFrom(ctx).With(zap.String("session_id", sessionID))

	var (
		items         []LineItem
		startingAfter string
	)
	for {
		page, err := c.lineItemPage(ctx, sessionID, startingAfter)
		if err != nil {
			log.Error("Failed to list line items", zap.Error(err))
			return nil, err
		}
		items = append(items, page.Data...)

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	log.Debug("Line items fetched", zap.Int("count", len(items)))
	return items, nil
}

func (c *Client) lineItemPage(ctx context.Context, sessionID, startingAfter string) (*lineItemList, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(pageSize))
	q.Add("expand[]", "data.price.product")
	if startingAfter != "" {
		q.Set("starting_after", startingAfter)
	}

	endpoint := fmt.Sprintf("%s/v1/checkout/sessions/%s/line_items?%s",
		c.baseURL, url.PathEscape(sessionID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build line items request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("line items request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read line items response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment provider error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var page lineItemList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode line items: %w", err)
	}
	return &page, nil
}
