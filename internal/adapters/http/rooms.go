package http

import (
	"net/http"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/dkeye/Colla/internal/store"
	"github.com/gin-gonic/gin"
)

// StorageAPI exposes the durable room records and saved files.
type StorageAPI struct {
	Store store.Store
}

type roomRequest struct {
	RoomID domain.RoomKey `json:"roomId" binding:"required"`
}

type saveRequest struct {
	RoomID domain.RoomKey `json:"roomId" binding:"required"`
	Files  []domain.File  `json:"files" binding:"required,dive"`
}

func (a *StorageAPI) listRooms(c *gin.Context) {
	rooms, err := a.Store.RoomsOf(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (a *StorageAPI) joinRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Room ID is required")
		return
	}
	room, err := a.Store.JoinRoom(c.Request.Context(), req.RoomID, c.GetString(userIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Room joined/created",
		"username": c.GetString(usernameKey),
		"room":     room,
	})
}

func (a *StorageAPI) leaveRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Room ID is required")
		return
	}
	room, err := a.Store.LeaveRoom(c.Request.Context(), req.RoomID, c.GetString(userIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room successfully", "updatedRoom": room})
}

func (a *StorageAPI) fetchFiles(c *gin.Context) {
	key := domain.RoomKey(c.Query("roomId"))
	if key == "" {
		badRequest(c, "roomId is required")
		return
	}
	files, err := a.Store.ListFiles(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (a *StorageAPI) saveFiles(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "roomId and files are required")
		return
	}
	if err := a.Store.SaveFiles(c.Request.Context(), req.RoomID, req.Files); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Files saved successfully!"})
}
