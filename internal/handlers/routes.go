package handlers

import "github.com/gin-gonic/gin"

// API bundles every REST handler.
type API struct {
	Rooms       *RoomHandler
	Messages    *MessageHandler
	Invitations *InvitationHandler
	Devices     *DeviceHandler
	Folders     *FolderHandler
}

// Register mounts the REST surface behind authn.
func (a API) Register(router gin.IRouter, authn gin.HandlerFunc) {
	chat := router.Group("/chat", authn)

	rooms := chat.Group("/rooms")
	rooms.GET("", a.Rooms.ListRooms)
	rooms.POST("/direct", a.Rooms.StartDirect)
	rooms.POST("/group", a.Rooms.CreateGroup)
	rooms.GET("/:room_id", a.Rooms.GetRoom)
	rooms.PATCH("/:room_id", a.Rooms.UpdateRoom)
	rooms.POST("/:room_id/leave", a.Rooms.LeaveRoom)
	rooms.POST("/:room_id/invitations", a.Rooms.InviteMembers)
	rooms.PATCH("/:room_id/members/:user_id", a.Rooms.UpdateMember)
	rooms.DELETE("/:room_id/members/:user_id", a.Rooms.RemoveMember)

	rooms.GET("/:room_id/messages", a.Messages.ListMessages)
	rooms.POST("/:room_id/messages", a.Messages.PostMessage)
	rooms.POST("/:room_id/messages/read", a.Messages.MarkRead)
	rooms.PATCH("/:room_id/messages/:message_id", a.Messages.EditMessage)
	rooms.DELETE("/:room_id/messages/:message_id", a.Messages.DeleteMessage)

	invitations := chat.Group("/invitations")
	invitations.GET("", a.Invitations.ListAll)
	invitations.GET("/direct", a.Invitations.ListDirect)
	invitations.GET("/group", a.Invitations.ListGroup)
	invitations.POST("/direct/:id", a.Invitations.RespondDirect)
	invitations.POST("/group/:id", a.Invitations.RespondGroup)

	folders := chat.Group("/folders")
	folders.GET("", a.Folders.ListFolders)
	folders.POST("", a.Folders.CreateFolder)
	folders.GET("/:id", a.Folders.GetFolder)
	folders.PATCH("/:id", a.Folders.UpdateFolder)
	folders.DELETE("/:id", a.Folders.DeleteFolder)
	folders.POST("/:id/rooms", a.Folders.AddRoom)
	folders.DELETE("/:id/rooms/:room_id", a.Folders.RemoveRoom)

	devices := router.Group("/devices", authn)
	devices.GET("", a.Devices.ListDevices)
	devices.POST("", a.Devices.RegisterDevice)
	devices.POST("/touch", a.Devices.Touch)
	devices.DELETE("/:device_id", a.Devices.DeleteDevice)
	devices.GET("/:device_id/private-key", a.Devices.PrivateKey)

	router.GET("/users/:user_id/devices", authn, a.Devices.UserDevices)
}
