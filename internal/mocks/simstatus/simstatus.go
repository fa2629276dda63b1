// Package simstatus provides the proxy handler behind the sim-status mock
package simstatus

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the activation status reply
type Response struct {
	MobileNumber string `json:"mobileNumber"`
	Status       string `json:"status"`
	RefID        string `json:"refId"`
}

// Handler reports every SIM as successfully activated
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		MobileNumber: c.Query("mobileNumber"),
		Status:       "SUCCESSFUL",
		RefID:        uuid.NewString(),
	})
}
