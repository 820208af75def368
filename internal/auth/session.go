package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Login frame constants.
const (
	LoginDomain   = "Login"
	LoginStreamID = 1
	LoginMethod   = "LOGIN"

	typeRefresh = "Refresh"
	typeStatus  = "Status"
	typeClose   = "Close"

	streamOpen = "Open"
)

// ErrLoginRejected is returned when the server refuses the login.
var ErrLoginRejected = errors.New("login rejected")

// RejectedError carries the server's reason for refusing a login.
type RejectedError struct {
	Stream string
	Code   string
	Text   string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("login rejected: stream %s: %s (%s)", e.Stream, e.Text, e.Code)
	}
	return fmt.Sprintf("login rejected: stream %s: %s", e.Stream, e.Text)
}

func (e *RejectedError) Unwrap() error { return ErrLoginRejected }

// SessionConfig describes the identity presented at login.
type SessionConfig struct {
	User          string
	ApplicationID string
	Position      string
	// SessionHeader names the handshake header carrying the session id.
	// Empty disables it.
	SessionHeader string
}

// Session produces login and close frames and recognises the login
// acknowledgement. A nil Credentials sends an unsigned login.
type Session struct {
	cfg   SessionConfig
	creds *Credentials
	id    string
	now   func() time.Time

	mu        sync.Mutex
	requestID string
}

// NewSession creates a Session with a fresh session id.
func NewSession(cfg SessionConfig, creds *Credentials) (*Session, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("session user is required")
	}
	return &Session{
		cfg:   cfg,
		creds: creds,
		id:    uuid.NewString(),
		now:   time.Now,
	}, nil
}

// ID returns the session id sent in the handshake header.
func (s *Session) ID() string { return s.id }

// Header returns the handshake headers for the websocket upgrade.
func (s *Session) Header() http.Header {
	h := http.Header{}
	if s.cfg.SessionHeader != "" {
		h.Set(s.cfg.SessionHeader, s.id)
	}
	return h
}

type loginRequest struct {
	ID     int       `json:"ID"`
	Domain string    `json:"Domain"`
	Type   string    `json:"Type,omitempty"`
	Key    *loginKey `json:"Key,omitempty"`
}

type loginKey struct {
	Name     string        `json:"Name,omitempty"`
	Elements loginElements `json:"Elements"`
}

type loginElements struct {
	ApplicationID string `json:"ApplicationId,omitempty"`
	Position      string `json:"Position,omitempty"`
	RequestID     string `json:"RequestId,omitempty"`
	KeyID         string `json:"KeyId,omitempty"`
	Timestamp     string `json:"Timestamp,omitempty"`
	Signature     string `json:"Signature,omitempty"`
}

// LoginMessage builds the login frame. Each call gets a new request id and,
// with credentials, a fresh signature over timestamp + LOGIN + user.
func (s *Session) LoginMessage() ([]byte, error) {
	requestID := uuid.NewString()

	elems := loginElements{
		ApplicationID: s.cfg.ApplicationID,
		Position:      s.cfg.Position,
		RequestID:     requestID,
	}

	if s.creds != nil {
		signed, err := s.creds.signAt(s.now(), LoginMethod, s.cfg.User)
		if err != nil {
			return nil, fmt.Errorf("sign login: %w", err)
		}
		elems.KeyID = signed.Get(HeaderAccessKey)
		elems.Timestamp = signed.Get(HeaderAccessTimestamp)
		elems.Signature = signed.Get(HeaderAccessSignature)
	}

	data, err := json.Marshal(loginRequest{
		ID:     LoginStreamID,
		Domain: LoginDomain,
		Key: &loginKey{
			Name:     s.cfg.User,
			Elements: elems,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login: %w", err)
	}

	s.mu.Lock()
	s.requestID = requestID
	s.mu.Unlock()

	return data, nil
}

// CloseMessage builds the frame that closes the login stream.
func (s *Session) CloseMessage() ([]byte, error) {
	return json.Marshal(loginRequest{
		ID:     LoginStreamID,
		Domain: LoginDomain,
		Type:   typeClose,
	})
}

// RequestID returns the id of the last login frame built.
func (s *Session) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

type inboundMessage struct {
	ID     int         `json:"ID"`
	Type   string      `json:"Type"`
	Domain string      `json:"Domain"`
	State  streamState `json:"State"`
}

type streamState struct {
	Stream string `json:"Stream"`
	Data   string `json:"Data"`
	Code   string `json:"Code"`
	Text   string `json:"Text"`
}

// LoginAck reports whether frame acknowledges the login. Frames may hold a
// single object or an array of objects. A login-stream status that is not
// open is a rejection.
func (s *Session) LoginAck(frame []byte) (bool, error) {
	msgs, err := decodeFrame(frame)
	if err != nil {
		return false, nil
	}

	for _, m := range msgs {
		if m.ID != LoginStreamID || !strings.EqualFold(m.Domain, LoginDomain) {
			continue
		}
		switch m.Type {
		case typeRefresh, typeStatus:
		default:
			continue
		}
		if m.State.Stream != streamOpen {
			return false, &RejectedError{Stream: m.State.Stream, Code: m.State.Code, Text: m.State.Text}
		}
		if m.Type == typeRefresh {
			return true, nil
		}
	}
	return false, nil
}

func decodeFrame(frame []byte) ([]inboundMessage, error) {
	trimmed := strings.TrimSpace(string(frame))
	if strings.HasPrefix(trimmed, "[") {
		var msgs []inboundMessage
		if err := json.Unmarshal([]byte(trimmed), &msgs); err != nil {
			return nil, err
		}
		return msgs, nil
	}
	var m inboundMessage
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return nil, err
	}
	return []inboundMessage{m}, nil
}
