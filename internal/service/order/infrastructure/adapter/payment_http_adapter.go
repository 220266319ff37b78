// internal/service/order/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"orderpipeline/internal/service/order/domain"
)

// PaymentHTTPAdapter 通过 HTTP 调用外部支付网关，实现 port.PaymentGateway。
// 每次调用的超时由上层传入的 ctx 控制（支付阶段会套上配置的支付超时）。
type PaymentHTTPAdapter struct {
	client   *http.Client
	endpoint string
}

func NewPaymentHTTPAdapter(endpoint string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{
		// Timeout 不在这里设置，完全受每次请求的 ctx 控制
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		endpoint: endpoint,
	}
}

type chargeRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

type chargeResponse struct {
	Approved bool `json:"approved"`
}

func (a *PaymentHTTPAdapter) Charge(ctx context.Context, order *domain.Order) (bool, error) {
	body, err := json.Marshal(chargeRequest{OrderID: order.OrderID, Amount: order.TotalAmount})
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal charge request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, "failed to build charge request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "payment gateway call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var result chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, errors.Wrap(err, "failed to decode charge response")
	}
	return result.Approved, nil
}
