package http

import (
	"encoding/json"
	"net/http"

	"github.com/dkeye/Colla/internal/app/orch"
	"github.com/dkeye/Colla/internal/config"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// LiveAPI serves read-only views of the in-memory rooms and the leave beacon.
type LiveAPI struct {
	Orch       *orch.Orchestrator
	Limiter    *RateLimiter
	ICEServers []webrtc.ICEServer
}

func ICEServersFromConfig(servers []config.ICEServer) []webrtc.ICEServer {
	return lo.Map(servers, func(s config.ICEServer, _ int) webrtc.ICEServer {
		out := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			out.Credential = s.Credential
		}
		return out
	})
}

func (a *LiveAPI) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": a.ICEServers})
}

func (a *LiveAPI) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.Orch.Rooms.List()})
}

func (a *LiveAPI) roomFiles(c *gin.Context) {
	room, ok := a.Orch.Rooms.Get(domain.RoomKey(c.Param("key")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": room.Key(), "files": room.Files()})
}

func (a *LiveAPI) roomMessages(c *gin.Context) {
	room, ok := a.Orch.Rooms.Get(domain.RoomKey(c.Param("key")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	messages := room.Transcript()
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"roomId": room.Key(), "messages": messages})
}

type leaveBeacon struct {
	RoomID   domain.RoomKey `json:"roomId"`
	Username string         `json:"username"`
}

// leave handles the page-unload beacon. Browsers ignore the answer, so the
// reply is always 200 whatever happened.
func (a *LiveAPI) leave(c *gin.Context) {
	defer c.String(http.StatusOK, "Beacon handled")

	body, err := c.GetRawData()
	if err != nil {
		return
	}
	var b leaveBeacon
	if err := json.Unmarshal(body, &b); err != nil || b.RoomID == "" || b.Username == "" {
		return
	}
	ip := c.ClientIP()
	if a.Limiter != nil && !a.Limiter.Allow(ip) {
		log.Warn().Str("module", "adapters.http").Str("client", ip).Msg("leave beacon rate limited")
		return
	}
	a.Orch.ExplicitLeave(b.RoomID, b.Username)
}
