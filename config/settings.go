package config

import (
	"encoding/json"
	"fmt"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/session"
)

// Default values applied before settings are decoded.
const (
	DefaultQueueCapacity = 10000
)

// BaseSessionSettings holds engine settings shared by the [DEFAULT] block
// and individual sessions. Unset fields are not rendered.
type BaseSessionSettings struct {
	SocketConnectHost string `json:"socketConnectHost,omitempty"`
	SocketConnectPort *int   `json:"socketConnectPort,omitempty"`
	SocketUseSSL      *bool  `json:"socketUseSSL,omitempty"`
	HeartBtInt        *int   `json:"heartBtInt,omitempty"`
	ReconnectInterval *int   `json:"reconnectInterval,omitempty"`
	LogonTimeout      *int   `json:"logonTimeout,omitempty"`
	LogoutTimeout     *int   `json:"logoutTimeout,omitempty"`

	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	StartDay  string `json:"startDay,omitempty"`
	EndDay    string `json:"endDay,omitempty"`
	TimeZone  string `json:"timeZone,omitempty"`

	ResetOnLogon      *bool `json:"resetOnLogon,omitempty"`
	ResetOnLogout     *bool `json:"resetOnLogout,omitempty"`
	ResetOnDisconnect *bool `json:"resetOnDisconnect,omitempty"`
	RefreshOnLogon    *bool `json:"refreshOnLogon,omitempty"`
	PersistMessages   *bool `json:"persistMessages,omitempty"`

	ValidateUserDefinedFields *bool `json:"validateUserDefinedFields,omitempty"`
	ValidateFieldsOutOfOrder  *bool `json:"validateFieldsOutOfOrder,omitempty"`
	ValidateFieldsHaveValues  *bool `json:"validateFieldsHaveValues,omitempty"`
	RejectInvalidMessage      *bool `json:"rejectInvalidMessage,omitempty"`
	CheckLatency              *bool `json:"checkLatency,omitempty"`
	MaxLatency                *int  `json:"maxLatency,omitempty"`

	DefaultApplVerID string `json:"defaultApplVerID,omitempty"`
}

// SessionSettings configures one FIX session.
type SessionSettings struct {
	BaseSessionSettings

	BeginString      string `json:"beginString"`
	SenderCompID     string `json:"senderCompID"`
	SenderSubID      string `json:"senderSubID,omitempty"`
	SenderLocationID string `json:"senderLocationID,omitempty"`
	TargetCompID     string `json:"targetCompID"`
	TargetSubID      string `json:"targetSubID,omitempty"`
	TargetLocationID string `json:"targetLocationID,omitempty"`
	SessionQualifier string `json:"sessionQualifier,omitempty"`

	SessionAlias string `json:"sessionAlias"`
}

// Identity returns the session key of s.
func (s SessionSettings) Identity() session.Identity {
	return session.Identity{
		BeginString:      s.BeginString,
		SenderCompID:     s.SenderCompID,
		SenderSubID:      s.SenderSubID,
		SenderLocationID: s.SenderLocationID,
		TargetCompID:     s.TargetCompID,
		TargetSubID:      s.TargetSubID,
		TargetLocationID: s.TargetLocationID,
		Qualifier:        s.SessionQualifier,
	}
}

// Settings is the bridge's behavioural configuration. Engine defaults are
// embedded and rendered as the [DEFAULT] block.
type Settings struct {
	BaseSessionSettings

	Sessions []SessionSettings `json:"sessionSettings"`

	// QueueCapacity bounds the echo publishing queue.
	QueueCapacity int `json:"queueCapacity"`
	// AutoStart opens sessions at process start.
	AutoStart bool `json:"autoStart"`
	// AutoStopAfter, in seconds, schedules a stop after any start that
	// does not name its own delay. Zero disables it.
	AutoStopAfter int `json:"autoStopAfter"`
	// StartControl enables the control surface.
	StartControl bool `json:"startControl"`
	// StartOnTraffic starts sessions when a batch arrives while stopped.
	StartOnTraffic bool `json:"startOnTraffic"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		QueueCapacity:  DefaultQueueCapacity,
		AutoStart:      true,
		StartOnTraffic: true,
	}
}

// UnmarshalJSON decodes settings on top of DefaultSettings so absent
// fields keep their defaults.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	out := plain(DefaultSettings())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*s = Settings(out)
	return nil
}

// Validate checks value ranges and required session fields.
func (s Settings) Validate() error {
	if s.QueueCapacity < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: queueCapacity must be non-negative, got %d",
			errors.ErrInvalidConfig, s.QueueCapacity), "config", "Validate", "settings check")
	}
	if s.AutoStopAfter < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: autoStopAfter must be non-negative, got %d",
			errors.ErrInvalidConfig, s.AutoStopAfter), "config", "Validate", "settings check")
	}
	if len(s.Sessions) == 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: sessionSettings must list at least one session",
			errors.ErrMissingConfig), "config", "Validate", "settings check")
	}

	for i, sess := range s.Sessions {
		missing := ""
		switch {
		case sess.BeginString == "":
			missing = "beginString"
		case sess.SenderCompID == "":
			missing = "senderCompID"
		case sess.TargetCompID == "":
			missing = "targetCompID"
		case sess.SessionAlias == "":
			missing = "sessionAlias"
		}
		if missing != "" {
			return errors.WrapInvalid(fmt.Errorf("%w: sessionSettings[%d].%s is required",
				errors.ErrMissingConfig, i, missing), "config", "Validate", "session check")
		}
	}
	return nil
}

// Entries converts the session list to registry entries in input order.
func (s Settings) Entries() []session.Entry {
	entries := make([]session.Entry, len(s.Sessions))
	for i, sess := range s.Sessions {
		entries[i] = session.Entry{Alias: session.Alias(sess.SessionAlias), Identity: sess.Identity()}
	}
	return entries
}
