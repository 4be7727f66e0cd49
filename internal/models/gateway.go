package models

import "encoding/json"

// Gateway types
const (
	GatewayTypeSMS      = "sms"
	GatewayTypeEmail    = "email"
	GatewayTypeWhatsapp = "whatsapp"
)

// Gateway auth types
const (
	GatewayAuthNone   = "NONE"
	GatewayAuthBearer = "BEARER"
	GatewayAuthBasic  = "BASIC"
	GatewayAuthAPIKey = "API_KEY"
)

// Gateway describes how to call an external messaging provider generically.
// It is configuration only: the dispatch core never calls a gateway, the
// only implemented sender is email.
type Gateway struct {
	Base
	ExternalUniqueID      string   `gorm:"size:255;index" json:"external_unique_id"`
	Name                  string   `gorm:"size:255;not null;index" json:"name"`
	Type                  string   `gorm:"size:32;not null" json:"type"` // sms, email, whatsapp
	AuthType              string   `gorm:"size:32;default:'NONE'" json:"auth_type"`
	AuthContext           JSONMap  `gorm:"type:jsonb" json:"auth_context"` // API key, username:password, token, etc.
	APIURL                string   `gorm:"size:1024;not null" json:"api_url"`
	RequestMethod         string   `gorm:"size:10;default:'POST'" json:"request_method"`
	Headers               JSONMap  `gorm:"type:jsonb" json:"headers"`
	BodyTemplate          JSONMap  `gorm:"type:jsonb" json:"body_template"`
	ParamsTemplate        JSONMap  `gorm:"type:jsonb" json:"params_template"`
	SuccessResponseCodes  IntArray `gorm:"type:jsonb" json:"success_response_codes"`
	ResponsePathToMessage string   `gorm:"size:255" json:"response_path_to_message"` // Dot notation path, e.g. "data.result"
	Context               JSONMap  `gorm:"type:jsonb" json:"context"`
}

// GetBodyTemplate returns the configured body template as a JSON string,
// falling back to the conventional whatsapp template message shape.
func (g *Gateway) GetBodyTemplate() string {
	body := map[string]interface{}(g.BodyTemplate)
	if body == nil {
		body = map[string]interface{}{}
	}
	if len(body) == 0 && g.Type == GatewayTypeWhatsapp {
		body = map[string]interface{}{
			"messaging_product": "whatsapp",
			"to":                "{{mobile_number}}",
			"type":              "template",
			"template": map[string]interface{}{
				"name":     "{{template_name}}",
				"language": map[string]interface{}{"code": "{{language}}"},
			},
		}
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

// GetHeaderTemplate returns the configured headers as a JSON string,
// with a whatsapp bearer-token default.
func (g *Gateway) GetHeaderTemplate() string {
	headers := map[string]interface{}(g.Headers)
	if headers == nil {
		headers = map[string]interface{}{}
	}
	if len(headers) == 0 && g.Type == GatewayTypeWhatsapp {
		headers = map[string]interface{}{
			"Content-Type":  "application/json",
			"Authorization": "Bearer {{token}}",
		}
	}
	raw, _ := json.Marshal(headers)
	return string(raw)
}

// IsSuccessCode reports whether the given HTTP status counts as success
// for this gateway. An empty list means plain 200.
func (g *Gateway) IsSuccessCode(status int) bool {
	if len(g.SuccessResponseCodes) == 0 {
		return status == 200
	}
	for _, code := range g.SuccessResponseCodes {
		if code == status {
			return true
		}
	}
	return false
}
