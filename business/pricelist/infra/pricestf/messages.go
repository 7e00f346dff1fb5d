package pricestf

import (
	"encoding/json"
	"time"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/currency"
)

// MessageType tags messages on the streaming channel.
type MessageType string

const (
	MessageAuthRequired MessageType = "AUTH_REQUIRED"
	MessagePriceUpdated MessageType = "PRICE_UPDATED"
	messageAuth         MessageType = "AUTH"
)

// StreamMessage is the envelope of every streamed message. The payload is
// decoded per tag; unknown tags are surfaced to the caller for logging.
type StreamMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseStreamMessage decodes a raw frame into the envelope.
func ParseStreamMessage(raw []byte) (StreamMessage, error) {
	var msg StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return StreamMessage{}, apperror.Wrap(err, apperror.CodePricerMalformedData, "stream frame")
	}
	return msg, nil
}

// DecodeData unmarshals the tagged payload into v.
func (m StreamMessage) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return apperror.New(apperror.CodePricerMalformedData,
			apperror.WithContext("message "+string(m.Type)+" carries no data"))
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return apperror.Wrap(err, apperror.CodePricerMalformedData, "message "+string(m.Type))
	}
	return nil
}

// authReply is the handshake sent in response to AUTH_REQUIRED.
type authReply struct {
	Type MessageType   `json:"type"`
	Data authReplyData `json:"data"`
}

type authReplyData struct {
	AccessToken string `json:"accessToken"`
}

func newAuthReply(token string) authReply {
	return authReply{Type: messageAuth, Data: authReplyData{AccessToken: token}}
}

// priceRecord is one price as the upstream REST API and stream carry it:
// whole keys plus metal counted in half-scrap. Null sides mean the upstream
// holds no price for that side.
type priceRecord struct {
	SKU           string `json:"sku"`
	BuyHalfScrap  *int64 `json:"buyHalfScrap"`
	BuyKeys       *int64 `json:"buyKeys"`
	SellHalfScrap *int64 `json:"sellHalfScrap"`
	SellKeys      *int64 `json:"sellKeys"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// toItem converts the wire record to the domain feed record.
func (r priceRecord) toItem() domain.Item {
	item := domain.Item{SKU: r.SKU}

	if r.BuyHalfScrap != nil {
		keys := int64(0)
		if r.BuyKeys != nil {
			keys = *r.BuyKeys
		}
		buy := currency.FromHalfScrap(keys, *r.BuyHalfScrap)
		item.Buy = &buy
	}
	if r.SellHalfScrap != nil {
		keys := int64(0)
		if r.SellKeys != nil {
			keys = *r.SellKeys
		}
		sell := currency.FromHalfScrap(keys, *r.SellHalfScrap)
		item.Sell = &sell
	}
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		item.Time = t.Unix()
	}
	return item
}

// pageResponse is one snapshot page.
type pageResponse struct {
	Items []priceRecord `json:"items"`
	Meta  pageMeta      `json:"meta"`
}

type pageMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemCount    int `json:"itemCount"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

// accessResponse is the POST /auth/access response.
type accessResponse struct {
	AccessToken string `json:"accessToken"`
}

// refreshResponse is the POST /prices/{sku}/refresh response.
type refreshResponse struct {
	Enqueued bool `json:"enqueued"`
}
