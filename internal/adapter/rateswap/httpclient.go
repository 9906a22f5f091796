package rateswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/httpx"
)

// open-api and core-api path prefixes the venue's REST surface splits
// market/account discovery from calldata-building across.
const (
	pathAssetsAll       = "/open-api/v1/assets/all"
	pathMarketsList     = "/core/v1/markets"
	pathOrderBook       = "/core/v1/order-books/"
	pathCollaterals     = "/core/v1/collaterals/summary"
	pathOpenOrders      = "/open-api/v1/accounts/limit-orders"
	pathDepositCalldata = "/core/v2/calldata/deposit"
	pathWithdrawRequest = "/core/v1/calldata/withdraw/request"
	pathPlaceOrder      = "/core/v4/calldata/place-order"
	pathClosePosition   = "/core/v4/calldata/close-active-position"
	pathCancelOrder     = "/core/v3/calldata/cancel-order"
	pathCashTransfer    = "/core/v3/calldata/cash-transfer"
)

// get issues a GET request against the adapter's base URL + path, with query
// encoded from params, decoding the JSON body into out.
func (a *BorosAdapter) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	u := a.baseURL() + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			if v == "" {
				continue
			}
			q.Set(k, v)
		}
		if enc := q.Encode(); enc != "" {
			u = u + "?" + enc
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return canon.Wrap(op, canon.ErrSchema, err)
	}
	if _, err := a.httpClient().DoJSON(ctx, req, out); err != nil {
		return canon.Wrap(op, canon.ErrProtocol, err)
	}
	return nil
}

// postJSON issues a POST of body (JSON-encoded) against op's path and
// decodes the response into out; every calldata-building endpoint follows
// this shape.
func (a *BorosAdapter) postJSON(ctx context.Context, op, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return canon.Wrap(op, canon.ErrSchema, err)
	}
	u := a.baseURL() + path
	if _, err := httpx.DoBodyJSON(ctx, a.httpClient(), http.MethodPost, u, encoded, nil, out); err != nil {
		return canon.Wrap(op, canon.ErrProtocol, err)
	}
	return nil
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}

func ftoa(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
}
