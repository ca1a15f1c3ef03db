package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// UserIDKey is the gin context key holding the caller id taken from X-User-ID.
const UserIDKey = "userID"

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	models.DateLayout,
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

func callerID(c *gin.Context) (int64, bool) {
	id := c.GetInt64(UserIDKey)
	if id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return 0, false
	}
	return id, true
}

// parseTimestamp accepts RFC 3339 or a zone-less wall-clock value interpreted in loc.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// usageFilter reads the inclusive fechaInicio/fechaFin day filter.
func usageFilter(c *gin.Context) (models.UsageFilter, error) {
	filter := models.UsageFilter{
		From: strings.TrimSpace(c.Query("fechaInicio")),
		To:   strings.TrimSpace(c.Query("fechaFin")),
	}
	for _, v := range []string{filter.From, filter.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, v); err != nil {
			return models.UsageFilter{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
		}
	}
	if filter.From != "" && filter.To != "" && filter.To < filter.From {
		return models.UsageFilter{}, errors.New("fechaFin must not be before fechaInicio")
	}
	return filter, nil
}

func validHumidity(h float64) bool {
	return h >= 0 && h <= 100
}
