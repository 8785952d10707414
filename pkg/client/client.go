// Package client is a small JSON client for the exchange API, used by the
// reporting tools and handy for integration scripting.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"colony-exchange/internal/models"
	"colony-exchange/internal/orders"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	baseURL string
	client  *resty.Client
}

func New(baseURL string) *Client {
	c := resty.New()
	c.SetTimeout(30 * time.Second)

	return &Client{
		baseURL: baseURL,
		client:  c,
	}
}

func (c *Client) url(format string, args ...interface{}) string {
	return c.baseURL + "/api/v1" + fmt.Sprintf(format, args...)
}

// do issues the request and decodes the body into out, treating any
// non-2xx response as an error carrying the server's message.
func (c *Client) do(req *resty.Request, method, url string, out interface{}) error {
	resp, err := req.Execute(method, url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
			return fmt.Errorf("%s %s: %s", method, url, body.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

func (c *Client) RegisterColony(colonyID string, colony models.Colony) (*models.Colony, error) {
	var out models.Colony
	err := c.do(c.client.R().SetBody(colony), "PUT", c.url("/colonies/%s", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTick(colonyID string, tick int32) error {
	body := map[string]int32{"tick": tick}
	return c.do(c.client.R().SetBody(body), "PUT", c.url("/colonies/%s/tick", colonyID), nil)
}

func (c *Client) IssuePromise(colonyID string) (*models.InventoryPromise, error) {
	var out models.InventoryPromise
	err := c.do(c.client.R(), "POST", c.url("/colonies/%s/promise", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivatePromise(colonyID, promiseID string) (*models.InventoryPromise, error) {
	var out models.InventoryPromise
	err := c.do(c.client.R(), "POST", c.url("/colonies/%s/promise/%s/activate", colonyID, promiseID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Tradables returns the signed catalog view for the colony's active
// promise session.
func (c *Client) Tradables(colonyID string) (string, []models.Tradable, error) {
	var out struct {
		PromiseID string            `json:"promise_id"`
		Tradables []models.Tradable `json:"tradables"`
	}
	err := c.do(c.client.R(), "GET", c.url("/colonies/%s/inventory", colonyID), &out)
	if err != nil {
		return "", nil, err
	}
	return out.PromiseID, out.Tradables, nil
}

func (c *Client) SetTradables(colonyID string, itemCodes []string) error {
	body := map[string][]string{"item_codes": itemCodes}
	return c.do(c.client.R().SetBody(body), "PUT", c.url("/colonies/%s/tradables", colonyID), nil)
}

func (c *Client) SubmitCandidates(colonyID, clientID string, items []models.CandidateItem) error {
	body := map[string]interface{}{"client_id": clientID, "items": items}
	return c.do(c.client.R().SetBody(body), "POST", c.url("/colonies/%s/candidates", colonyID), nil)
}

type PlaceOrderRequest struct {
	PromiseID       string             `json:"promise_id"`
	Tick            int32              `json:"tick"`
	Currency        int32              `json:"currency"`
	AdditionalFunds int64              `json:"additional_funds"`
	WTS             []models.OrderItem `json:"wts"`
	WTB             []models.OrderItem `json:"wtb"`
}

func (c *Client) PlaceOrder(colonyID string, req PlaceOrderRequest) (*orders.PlaceResult, error) {
	var out orders.PlaceResult
	err := c.do(c.client.R().SetBody(req), "POST", c.url("/colonies/%s/orders", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(colonyID string) ([]models.OrderSummary, error) {
	var out struct {
		Orders []models.OrderSummary `json:"orders"`
	}
	err := c.do(c.client.R(), "GET", c.url("/colonies/%s/orders", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) OrderManifest(colonyID, orderID string) ([]models.DeliveryItem, error) {
	var out struct {
		Items []models.DeliveryItem `json:"items"`
	}
	err := c.do(c.client.R(), "GET", c.url("/colonies/%s/orders/%s", colonyID, orderID), &out)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) UpdateOrderStatus(colonyID, orderID string, status models.OrderStatus, tick int32) (*models.OrderSummary, error) {
	body := map[string]int32{"status": int32(status), "tick": tick}
	var out models.OrderSummary
	err := c.do(c.client.R().SetBody(body), "PUT", c.url("/colonies/%s/orders/%s/status", colonyID, orderID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Balances(colonyID string) (map[string]int64, error) {
	var out struct {
		Balances map[string]int64 `json:"balances"`
	}
	err := c.do(c.client.R(), "GET", c.url("/colonies/%s/bank", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return out.Balances, nil
}

func (c *Client) Withdraw(colonyID string, amount int64, currency models.Currency) (*orders.PlaceResult, error) {
	body := map[string]interface{}{"amount": amount, "currency": int32(currency)}
	var out orders.PlaceResult
	err := c.do(c.client.R().SetBody(body), "POST", c.url("/colonies/%s/bank/withdraw", colonyID), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the exchange answers and is online.
func (c *Client) Health() (bool, error) {
	var out struct {
		Status string `json:"status"`
		Online bool   `json:"online"`
	}
	err := c.do(c.client.R(), "GET", c.baseURL+"/health", &out)
	if err != nil {
		return false, err
	}
	return out.Online, nil
}
