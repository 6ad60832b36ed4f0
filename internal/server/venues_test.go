package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	qrrepo "github.com/tipdrop/tipdrop/internal/qrcode/repository"
	"github.com/tipdrop/tipdrop/internal/server"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	staffrepo "github.com/tipdrop/tipdrop/internal/staff/repository"
	"github.com/tipdrop/tipdrop/internal/vault"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	venuerepo "github.com/tipdrop/tipdrop/internal/venue/repository"
	venueservice "github.com/tipdrop/tipdrop/internal/venue/service"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	engine   *gin.Engine
	venueSvc venuedomain.Service
	staff    staffdomain.Repository
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE venues (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			environment TEXT NOT NULL DEFAULT 'sandbox',
			merchant_id TEXT,
			server_key TEXT,
			client_key TEXT,
			midtrans_connected BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_venues_slug ON venues(slug)`,
		`CREATE TABLE staff (
			id BIGINT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			in_pool BOOLEAN NOT NULL DEFAULT TRUE,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE qr_codes (
			id BIGINT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			staff_id BIGINT,
			label TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE qr_code_recipients (
			id BIGINT PRIMARY KEY,
			qr_code_id BIGINT NOT NULL,
			staff_id BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (qr_code_id, staff_id)
		)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newFixture(t *testing.T, nodeID int64) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)

	credVault, err := vault.New("server-test-secret")
	require.NoError(t, err)

	venueSvc := venueservice.New(venueservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  venuerepo.Provide(),
		Vault: credVault,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())
	staff := staffrepo.Provide()
	server.NewServer(server.ServerParams{
		Gin:       engine,
		Cfg:       config.Config{},
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		VenueSvc:  venueSvc,
		StaffRepo: staff,
		QRRepo:    qrrepo.Provide(),
	})

	return &fixture{db: db, node: node, engine: engine, venueSvc: venueSvc, staff: staff}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedVenue(t *testing.T, name string) *venuedomain.Venue {
	t.Helper()
	venue, err := f.venueSvc.Create(context.Background(), venuedomain.CreateVenueRequest{Name: name})
	require.NoError(t, err)
	return venue
}

func (f *fixture) seedStaff(t *testing.T, venueID snowflake.ID, name, status string) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	member := &staffdomain.Staff{
		ID:        f.node.Generate(),
		VenueID:   venueID,
		Name:      name,
		Status:    status,
		InPool:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.staff.Insert(context.Background(), f.db, member))
	return member.ID
}

func (f *fixture) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Raw("SELECT COUNT(1) FROM "+table).Scan(&count).Error)
	return count
}

func TestCreateStaffSetsTimestamps(t *testing.T) {
	f := newFixture(t, 80)
	venue := f.seedVenue(t, "Warung Sore")

	w := f.do(t, http.MethodPost, "/admin/venues/"+venue.ID.String()+"/staff", gin.H{"name": "Ayu"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var createdAt time.Time
	require.NoError(t, f.db.Raw(`SELECT created_at FROM staff WHERE venue_id = ?`, venue.ID).Scan(&createdAt).Error)
	assert.False(t, createdAt.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), createdAt, time.Minute)
}

func TestCreateQRCodeRejectsForeignRecipient(t *testing.T) {
	f := newFixture(t, 81)
	venue := f.seedVenue(t, "Warung Sore")
	other := f.seedVenue(t, "Kafe Pagi")
	outsider := f.seedStaff(t, other.ID, "Bob", staffdomain.StatusActive)

	w := f.do(t, http.MethodPost, "/admin/venues/"+venue.ID.String()+"/qrcodes", gin.H{
		"type":       "TEAM",
		"recipients": []string{outsider.String()},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Zero(t, f.countRows(t, "qr_codes"))
	assert.Zero(t, f.countRows(t, "qr_code_recipients"))
}

func TestCreateQRCodeRejectsInactiveRecipient(t *testing.T) {
	f := newFixture(t, 82)
	venue := f.seedVenue(t, "Warung Sore")
	former := f.seedStaff(t, venue.ID, "Citra", staffdomain.StatusInactive)
	f.seedStaff(t, venue.ID, "Ayu", staffdomain.StatusActive)

	w := f.do(t, http.MethodPost, "/admin/venues/"+venue.ID.String()+"/qrcodes", gin.H{
		"type":       "TEAM",
		"recipients": []string{former.String()},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Zero(t, f.countRows(t, "qr_codes"))
}

func TestCreateQRCodeRejectsSingleRecipientTeam(t *testing.T) {
	f := newFixture(t, 83)
	venue := f.seedVenue(t, "Warung Sore")
	only := f.seedStaff(t, venue.ID, "Ayu", staffdomain.StatusActive)

	w := f.do(t, http.MethodPost, "/admin/venues/"+venue.ID.String()+"/qrcodes", gin.H{
		"type":       "TEAM",
		"recipients": []string{only.String(), only.String()},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Zero(t, f.countRows(t, "qr_codes"))
}

func TestCreateQRCodeTeamWithRecipients(t *testing.T) {
	f := newFixture(t, 84)
	venue := f.seedVenue(t, "Warung Sore")
	ayu := f.seedStaff(t, venue.ID, "Ayu", staffdomain.StatusActive)
	budi := f.seedStaff(t, venue.ID, "Budi", staffdomain.StatusActive)

	w := f.do(t, http.MethodPost, "/admin/venues/"+venue.ID.String()+"/qrcodes", gin.H{
		"type":       "TEAM",
		"label":      "Bar",
		"recipients": []string{ayu.String(), budi.String()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, int64(1), f.countRows(t, "qr_codes"))
	assert.Equal(t, int64(2), f.countRows(t, "qr_code_recipients"))

	var createdAt time.Time
	require.NoError(t, f.db.Raw(`SELECT created_at FROM qr_codes`).Scan(&createdAt).Error)
	assert.False(t, createdAt.IsZero())
}

func TestCreateVenueDuplicateSlugConflict(t *testing.T) {
	f := newFixture(t, 85)

	w := f.do(t, http.MethodPost, "/admin/venues", gin.H{"name": "Warung Sore"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/admin/venues", gin.H{"name": "Warung Sore"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}
