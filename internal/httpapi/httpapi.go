// Package httpapi exposes the decoder over HTTP for browser clients, which
// upload a container and receive the decoded audio as a download.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	ncmunlock "github.com/zetetos/ncm-unlock"
)

const (
	DefaultMaxUpload = 256 << 20

	formField    = "file"
	formatHeader = "X-NCM-Format"
)

type Options struct {
	// MaxUpload caps the request body in bytes.
	MaxUpload int64
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string
	Logger       zerolog.Logger
}

// Response is the JSON body of every non-audio reply.
type Response struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Name     string         `json:"name,omitempty"`
	Format   string         `json:"format,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Handler struct {
	decoder   *ncmunlock.Decoder
	log       zerolog.Logger
	maxUpload int64
}

func NewHandler(decoder *ncmunlock.Decoder, opts Options) *Handler {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}

	return &Handler{
		decoder:   decoder,
		log:       opts.Logger,
		maxUpload: opts.MaxUpload,
	}
}

// NewRouter wires the handler into a gin engine with CORS and request
// logging.
func NewRouter(decoder *ncmunlock.Decoder, opts Options) *gin.Engine {
	h := NewHandler(decoder, opts)

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	config := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = opts.AllowOrigins
	}

	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.ExposeHeaders = []string{"Content-Disposition", formatHeader}
	router.Use(cors.New(config))

	api := router.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.POST("/decode", h.Decode)
		api.POST("/metadata", h.Metadata)
	}

	return router
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Message: "ok"})
}

// Decode returns the decoded audio as an attachment.
func (h *Handler) Decode(c *gin.Context) {
	result, ok := h.decodeUpload(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Name}))
	c.Header(formatHeader, result.Format)
	c.Data(http.StatusOK, result.MIMEType, result.Audio)
}

// Metadata returns the container metadata without the audio.
func (h *Handler) Metadata(c *gin.Context) {
	result, ok := h.decodeUpload(c)
	if !ok {
		return
	}

	resp := Response{
		Success:  true,
		Name:     result.Name,
		Format:   result.Format,
		Metadata: result.Metadata,
	}

	if result.MetadataErr != nil {
		resp.Message = result.MetadataErr.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) decodeUpload(c *gin.Context) (*ncmunlock.Result, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, header, err := c.Request.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", h.maxUpload))
		} else {
			h.fail(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		}

		return nil, false
	}
	defer file.Close()

	input, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))

		return nil, false
	}

	result, err := h.decoder.DecodeNamed(header.Filename, input)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)

		return nil, false
	}

	h.log.Debug().Str("file", header.Filename).Str("output", result.Name).Msg("decoded upload")

	return result, true
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	h.log.Warn().Err(err).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, Response{Success: false, Message: err.Error()})
}
