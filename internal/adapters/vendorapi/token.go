package vendorapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"onboard/internal/platform/upstream"
)

const tokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int    `json:"expire"`
}

// TenantToken exchanges an app id and secret for a tenant access token and
// caches it until shortly before expiry.
func TenantToken(baseURL, appID, appSecret string, hc *http.Client) *upstream.CachedToken {
	api := upstream.New("token", baseURL, upstream.WithHTTPClient(hc), upstream.WithRetry(1, 200*time.Millisecond))
	return upstream.NewCachedToken(func(ctx context.Context) (string, time.Duration, error) {
		var resp tokenResponse
		if err := api.Do(ctx, http.MethodPost, tokenPath, tokenRequest{AppID: appID, AppSecret: appSecret}, &resp); err != nil {
			return "", 0, err
		}
		if resp.Code != CodeOK || resp.Token == "" {
			return "", 0, fmt.Errorf("token exchange rejected: code %d: %s", resp.Code, resp.Msg)
		}
		return resp.Token, time.Duration(resp.Expire) * time.Second, nil
	})
}
