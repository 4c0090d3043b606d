package response

import "encoding/json"

type Payment struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Fee         int64             `json:"fee,omitempty"`
	Currency    string            `json:"currency"`
	Refunded    int64             `json:"refunded,omitempty"`
	Captured    int64             `json:"captured,omitempty"`
	Description string            `json:"description,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Source      Source            `json:"source"`
	CreatedAt   string            `json:"created_at,omitempty"`
}

// IsValid reports whether the payment carries the fields the flow needs.
func (p *Payment) IsValid() bool {
	return !(p.ID == "" || p.Status == "")
}

type Source struct {
	Type    string `json:"type"`
	Company string `json:"company,omitempty"`
	Name    string `json:"name,omitempty"`
	Number  string `json:"number,omitempty"`
	Message string `json:"message,omitempty"`
	// 3ds challenge page, only set while the payment is initiated
	TransactionURL string `json:"transaction_url,omitempty"`
	Token          string `json:"token,omitempty"`
	GatewayID      string `json:"gateway_id,omitempty"`
}

// Error is the body the gateway sends with non-2xx responses.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// field errors, shape varies between endpoints
	Errors json.RawMessage `json:"errors,omitempty"`
}
