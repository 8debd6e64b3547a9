// Package optimistic bridges user actions and backend confirmation.
// Every action lands in the channel store immediately under a
// temporary identifier (or as an in-place speculative mutation) and is
// replaced by server truth on confirmation or rolled back on failure.
package optimistic

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/rest"
	"github.com/pedrohba/convo/internal/store"
	"go.uber.org/zap"
)

// sendTimeout bounds a dispatched send after the caller is gone.
const sendTimeout = 60 * time.Second

// Backend is the slice of the REST collaborator the manager uses.
type Backend interface {
	SendMessage(ctx context.Context, req rest.SendRequest) (*model.Message, error)
	UploadAttachment(ctx context.Context, req rest.UploadRequest) (*model.Attachment, error)
	ToggleReaction(ctx context.Context, channelID, messageID, symbol string) error
	EditMessage(ctx context.Context, channelID, messageID, body string) (*model.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SetPinned(ctx context.Context, channelID, messageID string, pinned bool) error
}

// Ingestor lands a confirmed message in the store and its write-behind
// cache. Implemented by the reconcile engine.
type Ingestor interface {
	Ingest(msg *model.Message)
}

// Identity is the best-known display identity of the local user,
// stamped onto optimistic entries until the server echoes the real one.
type Identity struct {
	UserID string
	Name   string
	Avatar string
	Role   model.Role
}

// Upload is one attachment to upload before the message body is sent.
type Upload struct {
	Name       string
	Kind       string
	DurationMs int64
	Data       io.Reader
}

// SendInput describes one logical send operation.
type SendInput struct {
	ChannelID string
	Body      string
	Kind      model.Kind
	ReplyTo   string
	ProjectID string
	Uploads   []Upload
}

// Manager creates optimistic entries and reconciles them against
// confirmed server responses. It implements reconcile.Absorber.
type Manager struct {
	stores  *store.Registry
	backend Backend
	ingest  Ingestor
	bus     *bus.Bus
	metrics *metrics.Set
	logger  *zap.Logger
	self    Identity
	window  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSend // keyed by temp ID

	now   func() time.Time
	newID func() string
}

type pendingSend struct {
	channelID   string
	body        string
	createdAt   int64  // client clock, unix ms
	confirmedID string // set when a push event absorbed this send
}

// NewManager creates a manager. ingest and metrics may be nil; with a
// nil ingest, confirmed messages are upserted into the store directly.
func NewManager(stores *store.Registry, backend Backend, ingest Ingestor, b *bus.Bus, m *metrics.Set, self Identity, matchWindow time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		stores:  stores,
		backend: backend,
		ingest:  ingest,
		bus:     b,
		metrics: m,
		logger:  logger,
		self:    self,
		window:  matchWindow,
		pending: make(map[string]*pendingSend),
		now:     time.Now,
		newID:   func() string { return model.TempIDPrefix + uuid.NewString() },
	}
}

// SendFailure is the payload of message.send_failed events.
type SendFailure struct {
	TempID    string
	ChannelID string
	Err       string
}

// UploadFailure is the payload of attachment.upload_failed events.
type UploadFailure struct {
	TempID    string
	ChannelID string
	Name      string
	Err       string
}

// ActionFailure is the payload of message.action_failed events.
type ActionFailure struct {
	ChannelID string
	MessageID string
	Action    string
	Err       string
}

// Send inserts an optimistic entry synchronously and dispatches the
// request in the background. Returns the temporary identifier the UI
// can use to track the entry. The dispatch outlives ctx cancellation:
// a response arriving after the caller moved on must still retire the
// optimistic entry instead of leaking it.
func (m *Manager) Send(ctx context.Context, in SendInput) string {
	if in.Kind == "" {
		in.Kind = model.KindText
	}
	tempID := m.newID()
	nowMs := m.now().UnixMilli()

	entry := &model.Message{
		ID:           tempID,
		ChannelID:    in.ChannelID,
		SenderID:     m.self.UserID,
		SenderName:   m.self.Name,
		SenderAvatar: m.self.Avatar,
		SenderRole:   m.self.Role,
		Body:         in.Body,
		Kind:         in.Kind,
		ReplyTo:      in.ReplyTo,
		CreatedAt:    nowMs,
		UpdatedAt:    nowMs,
	}

	st := m.stores.Channel(in.ChannelID)
	st.Upsert(entry)

	m.mu.Lock()
	m.pending[tempID] = &pendingSend{
		channelID: in.ChannelID,
		body:      in.Body,
		createdAt: nowMs,
	}
	m.mu.Unlock()

	m.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: in.ChannelID, MessageID: tempID})

	go m.dispatch(context.WithoutCancel(ctx), tempID, in)
	return tempID
}

// Ref identifies a message in manager notifications.
type Ref struct {
	ChannelID string
	MessageID string
}

func (m *Manager) dispatch(ctx context.Context, tempID string, in SendInput) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	st := m.stores.Channel(in.ChannelID)

	// Attachments are uploaded before the message body is sent; the
	// first failed upload aborts the whole send, leaving no partial
	// message in the store.
	var attachments []model.Attachment
	for _, up := range in.Uploads {
		att, err := m.backend.UploadAttachment(ctx, rest.UploadRequest{
			ChannelID:  in.ChannelID,
			Name:       up.Name,
			Kind:       up.Kind,
			DurationMs: up.DurationMs,
			Data:       up.Data,
		})
		if err != nil {
			m.logger.Warn("attachment upload failed",
				zap.String("temp_id", tempID), zap.String("name", up.Name), zap.Error(err))
			m.countUpload("failure")
			m.abort(st, tempID, in.ChannelID)
			m.bus.Emit(bus.KindUploadFailed, UploadFailure{
				TempID: tempID, ChannelID: in.ChannelID, Name: up.Name, Err: err.Error(),
			})
			m.bus.Emit(bus.KindMessageSendFailed, SendFailure{
				TempID: tempID, ChannelID: in.ChannelID, Err: err.Error(),
			})
			return
		}
		m.countUpload("success")
		attachments = append(attachments, *att)
	}

	confirmed, err := m.backend.SendMessage(ctx, rest.SendRequest{
		ChannelID:   in.ChannelID,
		Body:        in.Body,
		Kind:        in.Kind,
		Attachments: attachments,
		ReplyTo:     in.ReplyTo,
		ProjectID:   in.ProjectID,
	})
	if err != nil {
		// Rolled back, surfaced, not retried.
		m.logger.Warn("send failed", zap.String("temp_id", tempID), zap.Error(err))
		m.countSend("failure")
		m.abort(st, tempID, in.ChannelID)
		m.bus.Emit(bus.KindMessageSendFailed, SendFailure{
			TempID: tempID, ChannelID: in.ChannelID, Err: err.Error(),
		})
		return
	}

	m.mu.Lock()
	p := m.pending[tempID]
	delete(m.pending, tempID)
	absorbedByPush := p != nil && p.confirmedID != ""
	m.mu.Unlock()

	// If the push event got here first, the reconciler already removed
	// the temp entry and upserted the confirmed message; upserting
	// again is idempotent. Either ordering leaves exactly one copy.
	if !absorbedByPush {
		st.Remove(tempID)
	}
	m.land(confirmed)

	m.countSend("success")
	m.bus.Emit(bus.KindMessageSendAck, Ref{ChannelID: in.ChannelID, MessageID: confirmed.ID})
}

// abort retires the optimistic entry after a failed send. If a push
// event absorbed the entry in the meantime the send actually reached
// the server, so the store is left alone.
func (m *Manager) abort(st *store.Store, tempID, channelID string) {
	m.mu.Lock()
	p := m.pending[tempID]
	delete(m.pending, tempID)
	absorbed := p != nil && p.confirmedID != ""
	m.mu.Unlock()

	if !absorbed {
		st.Remove(tempID)
		m.bus.Emit(bus.KindMessageRemoved, Ref{ChannelID: channelID, MessageID: tempID})
	}
}

// Absorb implements reconcile.Absorber: match a confirmed message to a
// pending send by sender, body, and recency. The match is a heuristic,
// not a guarantee — the window is short and collisions are unlikely,
// which is the same trade the optimistic UI made.
func (m *Manager) Absorb(msg *model.Message) (string, bool) {
	if msg.SenderID != m.self.UserID {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for tempID, p := range m.pending {
		if p.confirmedID != "" {
			continue
		}
		if p.channelID != msg.ChannelID || p.body != msg.Body {
			continue
		}
		delta := msg.CreatedAt - p.createdAt
		if delta < 0 {
			delta = -delta
		}
		if time.Duration(delta)*time.Millisecond > m.window {
			continue
		}
		p.confirmedID = msg.ID
		return tempID, true
	}
	return "", false
}

// Pending reports how many sends are awaiting confirmation.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) land(msg *model.Message) {
	if m.ingest != nil {
		m.ingest.Ingest(msg)
		return
	}
	m.stores.Channel(msg.ChannelID).Upsert(msg)
}

func (m *Manager) countSend(result string) {
	if m.metrics != nil {
		m.metrics.Sends.WithLabelValues(result).Inc()
	}
}

func (m *Manager) countUpload(result string) {
	if m.metrics != nil {
		m.metrics.Uploads.WithLabelValues(result).Inc()
	}
}
