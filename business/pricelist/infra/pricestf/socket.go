package pricestf

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/wsconn"
)

// SocketConfig tunes the streaming connection.
type SocketConfig struct {
	URL            string
	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SocketManager runs the streaming side of the feed: the transport reconnect
// loop lives in wsconn; this layer speaks the application protocol on top of
// it (AUTH handshake, tagged price messages) and refreshes the token when the
// transport reports an auth failure.
type SocketManager struct {
	client *wsconn.Client
	api    *APIClient
	log    logger.LoggerInterface

	handler func(ctx context.Context, item domain.Item)

	messages metric.Int64Counter
}

// NewSocketManager creates the manager. The handler must be registered via
// OnPriceUpdate before Connect.
func NewSocketManager(cfg SocketConfig, api *APIClient, log logger.LoggerInterface) (*SocketManager, error) {
	wsCfg := wsconn.DefaultConfig(cfg.URL, "prices-tf")
	if cfg.InitialBackoff > 0 {
		wsCfg.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		wsCfg.MaxBackoff = cfg.MaxBackoff
	}
	wsCfg.MaxReconnects = cfg.MaxReconnects
	// The token rotates, so it is read per dial.
	wsCfg.HeaderFunc = func() http.Header {
		h := http.Header{}
		if token := api.CachedToken(); token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
		return h
	}

	client, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	meter := otel.GetMeterProvider().Meter("prices_tf_socket")
	messages, err := meter.Int64Counter("price_stream_messages_total",
		metric.WithDescription("Streamed messages by type"))
	if err != nil {
		return nil, err
	}

	m := &SocketManager{
		client:   client,
		api:      api,
		log:      log,
		messages: messages,
	}
	client.OnMessage(m.handleMessage)
	client.OnStateChange(m.handleStateChange)
	return m, nil
}

// OnPriceUpdate registers the price-change handler.
func (m *SocketManager) OnPriceUpdate(handler func(ctx context.Context, item domain.Item)) {
	m.handler = handler
}

// Connect obtains a token if none is cached and opens the stream, retrying
// with backoff until connected or the context ends.
func (m *SocketManager) Connect(ctx context.Context) error {
	if _, err := m.api.ensureToken(ctx); err != nil {
		return err
	}
	return m.client.ConnectWithRetry(ctx)
}

// Shutdown closes the stream. Idempotent.
func (m *SocketManager) Shutdown(ctx context.Context) error {
	return m.client.Close()
}

func (m *SocketManager) IsConnected() bool  { return m.client.IsConnected() }
func (m *SocketManager) IsConnecting() bool { return m.client.IsConnecting() }

func (m *SocketManager) handleMessage(ctx context.Context, raw []byte) {
	msg, err := ParseStreamMessage(raw)
	if err != nil {
		m.log.Warn(ctx, "undecodable stream frame", "error", err)
		m.count(ctx, "malformed")
		return
	}

	switch msg.Type {
	case MessageAuthRequired:
		m.count(ctx, string(MessageAuthRequired))
		m.authenticate(ctx)
	case MessagePriceUpdated:
		m.count(ctx, string(MessagePriceUpdated))
		var record priceRecord
		if err := msg.DecodeData(&record); err != nil {
			m.log.Warn(ctx, "undecodable price update", "error", err)
			return
		}
		if m.handler != nil {
			m.handler(ctx, record.toItem())
		}
	default:
		m.count(ctx, "unknown")
		m.log.Warn(ctx, "unknown stream message type", "type", string(msg.Type))
	}
}

// authenticate answers the in-band AUTH_REQUIRED handshake with a fresh
// token. This is protocol-level auth, independent of the dial header.
func (m *SocketManager) authenticate(ctx context.Context) {
	token, err := m.api.RefreshToken(ctx)
	if err != nil {
		m.log.Error(ctx, "token refresh for stream auth failed", "error", err)
		return
	}
	if err := m.client.SendJSON(ctx, newAuthReply(token)); err != nil {
		m.log.Error(ctx, "auth reply send failed", "error", err)
	}
}

func (m *SocketManager) handleStateChange(state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateConnected:
		m.log.Info(ctx, "price stream connected")
	case wsconn.StateReconnecting:
		m.log.Warn(ctx, "price stream reconnecting", "error", err)
		// A transport-level auth rejection means the token expired; fetch a
		// new one so the next dial carries it.
		if isAuthError(err) {
			if _, refreshErr := m.api.RefreshToken(ctx); refreshErr != nil {
				m.log.Error(ctx, "token refresh after auth close failed", "error", refreshErr)
			}
		}
	case wsconn.StateDisconnected:
		m.log.Warn(ctx, "price stream disconnected", "error", err)
	case wsconn.StateClosed:
		m.log.Info(ctx, "price stream closed")
	}
}

func (m *SocketManager) count(ctx context.Context, msgType string) {
	m.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}

// isAuthError recognizes a dial rejected with 401 or a policy-violation
// close, the two shapes an expired token takes at the transport level.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "policy violation")
}
