package config

import (
	"strconv"
	"strings"
)

type block struct {
	b strings.Builder
}

func (bl *block) header(name string) {
	if bl.b.Len() > 0 {
		bl.b.WriteByte('\n')
	}
	bl.b.WriteString("[" + name + "]\n")
}

func (bl *block) str(key, value string) {
	if value == "" {
		return
	}
	bl.b.WriteString(key)
	bl.b.WriteByte('=')
	bl.b.WriteString(value)
	bl.b.WriteByte('\n')
}

func (bl *block) num(key string, value *int) {
	if value != nil {
		bl.str(key, strconv.Itoa(*value))
	}
}

func (bl *block) flag(key string, value *bool) {
	if value == nil {
		return
	}
	if *value {
		bl.str(key, "Y")
	} else {
		bl.str(key, "N")
	}
}

func (bl *block) base(s BaseSessionSettings) {
	bl.str("SocketConnectHost", s.SocketConnectHost)
	bl.num("SocketConnectPort", s.SocketConnectPort)
	bl.flag("SocketUseSSL", s.SocketUseSSL)
	bl.num("HeartBtInt", s.HeartBtInt)
	bl.num("ReconnectInterval", s.ReconnectInterval)
	bl.num("LogonTimeout", s.LogonTimeout)
	bl.num("LogoutTimeout", s.LogoutTimeout)
	bl.str("StartTime", s.StartTime)
	bl.str("EndTime", s.EndTime)
	bl.str("StartDay", s.StartDay)
	bl.str("EndDay", s.EndDay)
	bl.str("TimeZone", s.TimeZone)
	bl.flag("ResetOnLogon", s.ResetOnLogon)
	bl.flag("ResetOnLogout", s.ResetOnLogout)
	bl.flag("ResetOnDisconnect", s.ResetOnDisconnect)
	bl.flag("RefreshOnLogon", s.RefreshOnLogon)
	bl.flag("PersistMessages", s.PersistMessages)
	bl.flag("ValidateUserDefinedFields", s.ValidateUserDefinedFields)
	bl.flag("ValidateFieldsOutOfOrder", s.ValidateFieldsOutOfOrder)
	bl.flag("ValidateFieldsHaveValues", s.ValidateFieldsHaveValues)
	bl.flag("RejectInvalidMessage", s.RejectInvalidMessage)
	bl.flag("CheckLatency", s.CheckLatency)
	bl.num("MaxLatency", s.MaxLatency)
	bl.str("DefaultApplVerID", s.DefaultApplVerID)
}

// Render flattens settings into the engine's configuration text: one
// [DEFAULT] block followed by one [SESSION] block per session in input order.
// dictionaries maps a BeginString to the dictionary file injected into each
// session with that BeginString; it may be nil.
func Render(s Settings, dictionaries map[string]string) string {
	var bl block

	bl.header("DEFAULT")
	bl.str("ConnectionType", "initiator")
	bl.base(s.BaseSessionSettings)

	for _, sess := range s.Sessions {
		bl.header("SESSION")
		bl.str("BeginString", sess.BeginString)
		bl.str("SenderCompID", sess.SenderCompID)
		bl.str("SenderSubID", sess.SenderSubID)
		bl.str("SenderLocationID", sess.SenderLocationID)
		bl.str("TargetCompID", sess.TargetCompID)
		bl.str("TargetSubID", sess.TargetSubID)
		bl.str("TargetLocationID", sess.TargetLocationID)
		bl.str("SessionQualifier", sess.SessionQualifier)
		bl.base(sess.BaseSessionSettings)
		bl.str("DataDictionary", dictionaries[sess.BeginString])
	}
	return bl.b.String()
}
