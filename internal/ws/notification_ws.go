package ws

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/bus"
	"messenger-core/internal/models"
)

// HandleNotifications joins an authenticated user to their personal topic.
// The stream is server to client only.
func (g *Gateway) HandleNotifications(c *gin.Context) {
	cl, ctx, err := g.handshake(c.Writer, c.Request, KindNotifications, "", nil)
	if err != nil {
		return
	}
	g.Hub.Subscribe(bus.UserTopic(cl.info.UserID), cl)

	g.serve(ctx, cl, KindNotifications, cl.info.UserID, func(raw []byte) {
		var in models.ClientFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			cl.sendFrame(models.ErrorFrame("invalid json"))
			return
		}
		cl.sendFrame(models.ErrorFrame("unknown message type"))
	}, nil)
}
