package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
)

func (s *Server) CreateTip(c *gin.Context) {
	var req tipdomain.CreateTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tipSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTip(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	tip, err := s.tipSvc.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tip})
}
