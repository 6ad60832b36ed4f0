package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	qrdomain "github.com/tipdrop/tipdrop/internal/qrcode/domain"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
)

func (s *Server) CreateVenue(c *gin.Context) {
	var req venuedomain.CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	venue, err := s.venueSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": venue})
}

func (s *Server) GetVenue(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	venue, err := s.venueSvc.Get(c.Request.Context(), venueID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": venue})
}

func (s *Server) UpsertVenueCredentials(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req venuedomain.UpsertCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.venueSvc.UpsertCredentials(c.Request.Context(), venueID, req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createStaffRequest struct {
	Name   string `json:"name" binding:"required"`
	InPool *bool  `json:"in_pool"`
}

func (s *Server) CreateStaff(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req createStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.venueSvc.Get(c.Request.Context(), venueID); err != nil {
		AbortWithError(c, err)
		return
	}

	inPool := true
	if req.InPool != nil {
		inPool = *req.InPool
	}
	now := time.Now().UTC()
	staff := &staffdomain.Staff{
		ID:        s.genID.Generate(),
		VenueID:   venueID,
		Name:      strings.TrimSpace(req.Name),
		Status:    staffdomain.StatusActive,
		InPool:    inPool,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.staffRepo.Insert(c.Request.Context(), s.db, staff); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": staff})
}

func (s *Server) ListStaffBalances(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.venueSvc.Get(c.Request.Context(), venueID); err != nil {
		AbortWithError(c, err)
		return
	}

	balances, err := s.staffRepo.ListBalances(c.Request.Context(), s.db, venueID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balances})
}

type createQRCodeRequest struct {
	Type       string   `json:"type" binding:"required"`
	StaffID    string   `json:"staff_id"`
	Label      string   `json:"label"`
	Recipients []string `json:"recipients"`
}

func (s *Server) CreateQRCode(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req createQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	codeType, err := qrdomain.NormalizeType(req.Type)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if _, err := s.venueSvc.Get(c.Request.Context(), venueID); err != nil {
		AbortWithError(c, err)
		return
	}

	var staffID *snowflake.ID
	if codeType == qrdomain.TypeIndividual {
		parsed, err := parseSnowflake(req.StaffID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		member, err := s.staffRepo.IsVenueMember(c.Request.Context(), s.db, venueID, parsed)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !member {
			AbortWithError(c, staffdomain.ErrNotFound)
			return
		}
		staffID = &parsed
	}

	// Recipients must be distinct active members of this venue. A team code
	// may omit them entirely (open team, settled to the pool), but an
	// explicit list of one defeats the point of a team code.
	recipientIDs := make([]snowflake.ID, 0, len(req.Recipients))
	seen := make(map[snowflake.ID]struct{}, len(req.Recipients))
	for _, raw := range req.Recipients {
		recipientID, err := parseSnowflake(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		if _, dup := seen[recipientID]; dup {
			continue
		}
		seen[recipientID] = struct{}{}

		member, err := s.staffRepo.IsVenueMember(c.Request.Context(), s.db, venueID, recipientID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !member {
			AbortWithError(c, staffdomain.ErrNotFound)
			return
		}
		recipientIDs = append(recipientIDs, recipientID)
	}
	if codeType == qrdomain.TypeTeam && len(recipientIDs) == 1 {
		AbortWithError(c, invalidRequestError())
		return
	}

	now := time.Now().UTC()
	code := &qrdomain.QRCode{
		ID:        s.genID.Generate(),
		VenueID:   venueID,
		Type:      codeType,
		StaffID:   staffID,
		Label:     strings.TrimSpace(req.Label),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.qrRepo.Insert(c.Request.Context(), s.db, code); err != nil {
		AbortWithError(c, err)
		return
	}

	for _, recipientID := range recipientIDs {
		recipient := &qrdomain.Recipient{
			ID:        s.genID.Generate(),
			QRCodeID:  code.ID,
			StaffID:   recipientID,
			CreatedAt: now,
		}
		if err := s.qrRepo.AddRecipient(c.Request.Context(), s.db, recipient); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": code})
}

func (s *Server) CreatePayout(c *gin.Context) {
	venueID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payout, err := s.payoutSvc.CreatePayout(c.Request.Context(), venueID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	return parseSnowflake(c.Param(name))
}

func parseSnowflake(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
