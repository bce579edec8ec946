package ws

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ConnInfo identifies one live connection for logs and connection events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) fields() logrus.Fields {
	f := logrus.Fields{"conn_id": i.ConnID, "ip": i.IP}
	if i.UserID != "" {
		f["user_id"] = i.UserID
	}
	if i.RequestID != "" {
		f["request_id"] = i.RequestID
	}
	return f
}
