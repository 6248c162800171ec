package respond

import (
	"fmt"
	"net/http"
	"time"

	generateimage "template-service/internal/workers/templates/generate-image"

	"github.com/gin-gonic/gin"
)

const startKey = "requestStart"

// Template is a TemplateResponse extended with the measured duration.
type Template struct {
	generateimage.TemplateResponse
	ProcessingTime          int64  `json:"processingTime"`
	ProcessingTimeFormatted string `json:"processingTimeFormatted"`
}

// MarkStart records when the request started. Elapsed measures from here.
func MarkStart(c *gin.Context) {
	c.Set(startKey, time.Now())
}

// Elapsed returns the time since MarkStart, or zero when it was never called.
func Elapsed(c *gin.Context) time.Duration {
	if v, ok := c.Get(startKey); ok {
		if start, ok := v.(time.Time); ok {
			return time.Since(start)
		}
	}
	return 0
}

// StatusFor maps a pipeline status to the HTTP status code.
func StatusFor(resp generateimage.TemplateResponse) int {
	if resp.Status == generateimage.StatusSuccess {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// Generated writes resp with the status code derived from it.
func Generated(c *gin.Context, resp generateimage.TemplateResponse) {
	JSON(c, StatusFor(resp), resp)
}

// Failed writes a status 0 response with msg.
func Failed(c *gin.Context, status int, msg string) {
	JSON(c, status, generateimage.TemplateResponse{Status: generateimage.StatusFailed, Msg: msg})
}

func JSON(c *gin.Context, status int, resp generateimage.TemplateResponse) {
	elapsed := Elapsed(c)
	c.JSON(status, Template{
		TemplateResponse:        resp,
		ProcessingTime:          elapsed.Milliseconds(),
		ProcessingTimeFormatted: fmt.Sprintf("%.2fs", elapsed.Seconds()),
	})
}
