package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"gorm.io/gorm"
)

// GetTeams lists constructors, active ones first
// GET /api/v1/teams
func (h *Handlers) GetTeams(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Order("active DESC, name ASC")
	if c.Query("active") != "" {
		q = q.Where("active = ?", util.ParseBool(c.Query("active"), true))
	}

	teams := []models.Team{}
	if err := q.Find(&teams).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

// DriverQuery filters the driver listing
type DriverQuery struct {
	TeamID string `form:"team_id"`
	Season int    `form:"season" binding:"omitempty,min=1950,max=2100"`
}

// GetDrivers lists drivers, optionally for one team or season
// GET /api/v1/drivers?team_id=&season=
func (h *Handlers) GetDrivers(c *gin.Context) {
	var query DriverQuery
	if !util.BindQuery(c, &query) {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Preload("Team").Order("last_name ASC, first_name ASC")
	if query.TeamID != "" {
		q = q.Where("team_id = ?", query.TeamID)
	}
	if query.Season > 0 {
		q = q.Where("season = ?", query.Season)
	}

	drivers := []models.Driver{}
	if err := q.Find(&drivers).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers})
}

// GetTracks lists circuits
// GET /api/v1/tracks
func (h *Handlers) GetTracks(c *gin.Context) {
	tracks := []models.Track{}
	if err := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&tracks).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

// TeamRequest is the admin team form
type TeamRequest struct {
	Slug        string `json:"slug" binding:"required,max=50"`
	Name        string `json:"name" binding:"required,max=100"`
	FullName    string `json:"full_name" binding:"max=200"`
	Base        string `json:"base" binding:"max=100"`
	PowerUnit   string `json:"power_unit" binding:"max=100"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
	LogoURL     string `json:"logo_url" binding:"omitempty,url"`
	FirstSeason int    `json:"first_season" binding:"omitempty,min=1950"`
	Active      bool   `json:"active"`
}

func (r TeamRequest) apply(t *models.Team) {
	t.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	t.Name = strings.TrimSpace(r.Name)
	t.FullName = r.FullName
	t.Base = r.Base
	t.PowerUnit = r.PowerUnit
	t.Color = r.Color
	t.LogoURL = r.LogoURL
	t.FirstSeason = r.FirstSeason
	t.Active = r.Active
}

// DriverRequest is the admin driver form
type DriverRequest struct {
	Slug        string   `json:"slug" binding:"required,max=50"`
	FirstName   string   `json:"first_name" binding:"required,max=50"`
	LastName    string   `json:"last_name" binding:"required,max=50"`
	Code        string   `json:"code" binding:"omitempty,len=3,alpha"`
	Number      int      `json:"number" binding:"min=0,max=99"`
	Nationality []string `json:"nationality" binding:"omitempty,dive,iso3166_1_alpha2"`
	TeamID      *string  `json:"team_id"`
	Season      int      `json:"season" binding:"required,min=1950"`
	PhotoURL    string   `json:"photo_url" binding:"omitempty,url"`
	Active      bool     `json:"active"`
}

func (r DriverRequest) apply(d *models.Driver) {
	d.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	d.FirstName = strings.TrimSpace(r.FirstName)
	d.LastName = strings.TrimSpace(r.LastName)
	d.Code = strings.ToUpper(r.Code)
	d.Number = r.Number
	d.Nationality = pq.StringArray(r.Nationality)
	d.TeamID = r.TeamID
	d.Season = r.Season
	d.PhotoURL = r.PhotoURL
	d.Active = r.Active
}

// TrackRequest is the admin track form
type TrackRequest struct {
	Slug       string  `json:"slug" binding:"required,max=50"`
	Name       string  `json:"name" binding:"required,max=100"`
	Country    string  `json:"country" binding:"max=100"`
	City       string  `json:"city" binding:"max=100"`
	LengthKM   float64 `json:"length_km" binding:"min=0"`
	Turns      int     `json:"turns" binding:"min=0"`
	MapURL     string  `json:"map_url" binding:"omitempty,url"`
	FirstGrand int     `json:"first_grand_prix" binding:"omitempty,min=1950"`
}

func (r TrackRequest) apply(t *models.Track) {
	t.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	t.Name = strings.TrimSpace(r.Name)
	t.Country = r.Country
	t.City = r.City
	t.LengthKM = r.LengthKM
	t.Turns = r.Turns
	t.MapURL = r.MapURL
	t.FirstGrand = r.FirstGrand
}

// CreateTeam adds a constructor
// POST /api/v1/admin/teams
func (h *Handlers) CreateTeam(c *gin.Context) {
	var req TeamRequest
	if !util.BindJSON(c, &req) {
		return
	}
	var team models.Team
	req.apply(&team)
	h.saveReference(c, &team, true, "team")
}

// UpdateTeam replaces a constructor's fields
// PUT /api/v1/admin/teams/:id
func (h *Handlers) UpdateTeam(c *gin.Context) {
	var req TeamRequest
	if !util.BindJSON(c, &req) {
		return
	}
	var team models.Team
	if !h.loadReference(c, &team, "team") {
		return
	}
	req.apply(&team)
	h.saveReference(c, &team, false, "team")
}

// CreateDriver adds a driver
// POST /api/v1/admin/drivers
func (h *Handlers) CreateDriver(c *gin.Context) {
	var req DriverRequest
	if !util.BindJSON(c, &req) {
		return
	}
	if !h.checkDriverTeam(c, req.TeamID) {
		return
	}
	var driver models.Driver
	req.apply(&driver)
	h.saveReference(c, &driver, true, "driver")
}

// UpdateDriver replaces a driver's fields
// PUT /api/v1/admin/drivers/:id
func (h *Handlers) UpdateDriver(c *gin.Context) {
	var req DriverRequest
	if !util.BindJSON(c, &req) {
		return
	}
	if !h.checkDriverTeam(c, req.TeamID) {
		return
	}
	var driver models.Driver
	if !h.loadReference(c, &driver, "driver") {
		return
	}
	req.apply(&driver)
	driver.Team = nil
	h.saveReference(c, &driver, false, "driver")
}

func (h *Handlers) checkDriverTeam(c *gin.Context, teamID *string) bool {
	if teamID == nil {
		return true
	}
	id, ok := h.checkFavorite(c, "team_id", &models.Team{}, *teamID)
	if ok && id == nil {
		respondValidation(c, "team_id", "team_id must not be empty")
		return false
	}
	return ok
}

// CreateTrack adds a circuit
// POST /api/v1/admin/tracks
func (h *Handlers) CreateTrack(c *gin.Context) {
	var req TrackRequest
	if !util.BindJSON(c, &req) {
		return
	}
	var track models.Track
	req.apply(&track)
	h.saveReference(c, &track, true, "track")
}

// UpdateTrack replaces a circuit's fields
// PUT /api/v1/admin/tracks/:id
func (h *Handlers) UpdateTrack(c *gin.Context) {
	var req TrackRequest
	if !util.BindJSON(c, &req) {
		return
	}
	var track models.Track
	if !h.loadReference(c, &track, "track") {
		return
	}
	req.apply(&track)
	h.saveReference(c, &track, false, "track")
}

func (h *Handlers) loadReference(c *gin.Context, dst interface{}, name string) bool {
	err := h.db.WithContext(c.Request.Context()).First(dst, "id = ?", c.Param("id")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, name)
		return false
	}
	if err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func (h *Handlers) saveReference(c *gin.Context, row interface{}, create bool, name string) {
	db := h.db.WithContext(c.Request.Context())
	var err error
	if create {
		err = db.Create(row).Error
	} else {
		err = db.Save(row).Error
	}
	if util.IsUniqueViolation(err) {
		util.RespondConflict(c, name+" slug")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if create {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{name: row})
}
