package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"communication-service/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// renderPlaceholders substitutes {{key}} markers with values from the
// context. Unknown keys are left untouched so a misconfigured template is
// visible in the outgoing request rather than silently blanked.
func renderPlaceholders(template string, context map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := context[key]
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", value)
	})
}

// GatewayClient performs test calls against configured messaging
// gateways. Dispatch itself never goes through a gateway; this exists so
// an operator can verify a provider config before relying on it.
type GatewayClient struct {
	HTTPClient *http.Client
}

func NewGatewayClient() *GatewayClient {
	return &GatewayClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// GatewayTestResult is the outcome of one test call.
type GatewayTestResult struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"`
	Message    interface{} `json:"message,omitempty"`
}

// TestGateway renders the gateway's templates with the given context,
// fires one request at the provider and interprets the response per the
// gateway's success codes and response message path.
func (g *GatewayClient) TestGateway(gw *models.Gateway, context map[string]interface{}) (*GatewayTestResult, error) {
	// Merge into a fresh map so the gateway's stored context is never
	// mutated by per-request overrides.
	merged := make(map[string]interface{}, len(gw.Context)+len(context))
	for k, v := range gw.Context {
		merged[k] = v
	}
	for k, v := range context {
		merged[k] = v
	}

	body := renderPlaceholders(gw.GetBodyTemplate(), merged)

	method := gw.RequestMethod
	if method == "" {
		method = http.MethodPost
	}

	endpoint, err := g.buildURL(gw, merged)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}

	var headers map[string]string
	if err := json.Unmarshal([]byte(renderPlaceholders(gw.GetHeaderTemplate(), merged)), &headers); err == nil {
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	g.applyAuth(req, gw)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s unreachable: %w", gw.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := &GatewayTestResult{
		Success:    gw.IsSuccessCode(resp.StatusCode),
		StatusCode: resp.StatusCode,
	}
	result.Message = extractByPath(raw, gw.ResponsePathToMessage)
	return result, nil
}

func (g *GatewayClient) buildURL(gw *models.Gateway, context map[string]interface{}) (string, error) {
	endpoint := renderPlaceholders(gw.APIURL, context)
	if len(gw.ParamsTemplate) == 0 {
		return endpoint, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url: %w", err)
	}
	query := parsed.Query()
	for key, value := range gw.ParamsTemplate {
		query.Set(key, renderPlaceholders(fmt.Sprintf("%v", value), context))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (g *GatewayClient) applyAuth(req *http.Request, gw *models.Gateway) {
	auth := map[string]interface{}(gw.AuthContext)
	str := func(key string) string {
		v, _ := auth[key].(string)
		return v
	}

	switch gw.AuthType {
	case models.GatewayAuthBearer:
		if token := str("token"); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case models.GatewayAuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(str("username") + ":" + str("password")))
		req.Header.Set("Authorization", "Basic "+creds)
	case models.GatewayAuthAPIKey:
		header := str("header")
		if header == "" {
			header = "X-Api-Key"
		}
		req.Header.Set(header, str("api_key"))
	}
}

// extractByPath walks a dot-notation path ("data.result") through the
// JSON response. An empty path or any miss falls back to the raw body.
func extractByPath(raw []byte, path string) interface{} {
	body := strings.TrimSpace(string(raw))
	if path == "" {
		return body
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return body
	}

	current := decoded
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return body
		}
		current, ok = node[segment]
		if !ok {
			return body
		}
	}
	return current
}
