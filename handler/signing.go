package handler

import (
	"errors"
	"net/http"

	"github.com/Amaz3n/inkwell/service"
	"github.com/gin-gonic/gin"
)

type SigningHandler struct {
	signing *service.SigningService
}

func NewSigningHandler(signing *service.SigningService) *SigningHandler {
	return &SigningHandler{signing: signing}
}

// Session returns the signing session for a token. Read-only; reloading
// the signing page never consumes a use.
func (h *SigningHandler) Session(c *gin.Context) {
	info, err := h.signing.Session(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type submitRequest struct {
	SignerName  string         `json:"signer_name" binding:"required"`
	SignerEmail string         `json:"signer_email"`
	ConsentText string         `json:"consent_text"`
	Values      map[string]any `json:"values"`
}

// Submit accepts one signer's values and runs the signing workflow.
func (h *SigningHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	in := &service.SubmitInput{
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
		SignerIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		ConsentText: req.ConsentText,
		Values:      req.Values,
	}

	result, err := h.signing.Submit(c.Request.Context(), c.Param("token"), in)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"envelope_status":       result.EnvelopeStatus,
		"executed_document_url": result.ExecutedDocumentURL,
		"progress":              result.Progress,
	})
}

// writeWorkflowError maps workflow error codes onto HTTP statuses. Messages
// are already signer-safe; internal causes stay in the logs.
func writeWorkflowError(c *gin.Context, err error) {
	var we *service.Error
	status := http.StatusInternalServerError
	message := "Internal server error"

	if errors.As(err, &we) {
		message = we.Message
		switch we.Code {
		case service.CodeNotFound:
			status = http.StatusNotFound
		case service.CodeExpired, service.CodeExhausted, service.CodeInvalid:
			status = http.StatusGone
		case service.CodeOutOfOrder:
			status = http.StatusConflict
		case service.CodeValidationFailed:
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
			message = "Internal server error"
		}
	}

	c.JSON(status, gin.H{"error": message, "code": service.CodeOf(err)})
}
