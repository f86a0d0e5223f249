// Package httpapi is the gin transport: it resolves the caller's identity,
// routes requests to the story services and maps their errors to HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/pagination"
	"github.com/dmitrijs2005/relaytale/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assigner hands out parts.
type Assigner interface {
	NextPart(ctx context.Context, userID string) (*models.Part, error)
}

// Completer applies writers' submissions.
type Completer interface {
	CompletePart(ctx context.Context, userID, partID string, in services.PartSubmission) (*services.SubmitResult, error)
	SavePart(ctx context.Context, userID, partID string, in services.PartSubmission) (*services.SubmitResult, error)
	ReleasePart(ctx context.Context, userID, partID string) error
}

// Users resolves identities and stores refresh credentials.
type Users interface {
	EnsureUser(ctx context.Context, externalID string) (*models.User, error)
	StoreRefreshCredential(ctx context.Context, userID, credential string) error
}

// Stories serves read-only story queries.
type Stories interface {
	Story(ctx context.Context, id string) (*models.Story, error)
	PreviousPart(ctx context.Context, userID string) (*models.Part, error)
	MyStories(ctx context.Context, userID string, req pagination.Request) (*pagination.Page[models.StoryWithParts], error)
	RandomCompleteStory(ctx context.Context) (*models.StoryWithParts, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	assigner   Assigner
	completer  Completer
	users      Users
	stories    Stories
	log        logging.Logger
	secret     []byte
	cookieName string
}

func NewHandler(a Assigner, c Completer, u Users, s Stories, log logging.Logger, secretKey, cookieName string) *Handler {
	if cookieName == "" {
		cookieName = common.AccessTokenCookieName
	}
	return &Handler{
		assigner:   a,
		completer:  c,
		users:      u,
		stories:    s,
		log:        log,
		secret:     []byte(secretKey),
		cookieName: cookieName,
	}
}

// RegisterRoutes mounts the API and the paths older clients still call.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	health := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	router.GET("/health", health)
	router.HEAD("/health", health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/stories/random", h.randomCompleteStory)
	router.GET("/random_complete_story/", h.randomCompleteStory)

	api := router.Group("/api", h.Authenticate())
	{
		api.GET("/home", h.home)
		api.GET("/parts/next", h.nextPart)
		api.GET("/parts/previous", h.previousPart)
		api.PATCH("/parts/:id/complete", h.completePart)
		api.PATCH("/parts/:id/save", h.savePart)
		api.DELETE("/parts/:id/assignment", h.releasePart)
		api.GET("/stories/mine", h.myStories)
		api.PUT("/users/me/refresh-credential", h.storeRefreshCredential)
	}

	legacy := router.Group("", h.Authenticate())
	{
		legacy.GET("/home", h.home)
		legacy.GET("/get_part/", h.nextPart)
		legacy.GET("/get_previous_part/", h.previousPart)
		legacy.PATCH("/complete_part/:id", h.completePart)
		legacy.PATCH("/save_part/:id", h.savePart)
		legacy.GET("/my_stories/", h.myStories)
	}
}

// --- payloads ---

type storyRef struct {
	ID    string  `json:"id"`
	Title *string `json:"title"`
}

type partResponse struct {
	ID           string     `json:"id"`
	Number       int        `json:"number"`
	Text         string     `json:"text"`
	DateStarted  *time.Time `json:"date_started,omitempty"`
	DateComplete *time.Time `json:"date_complete,omitempty"`
	Story        *storyRef  `json:"story,omitempty"`
}

type storyResponse struct {
	ID           string         `json:"id"`
	Title        *string        `json:"title"`
	DateCreated  time.Time      `json:"date_created"`
	DateComplete *time.Time     `json:"date_complete"`
	Parts        []partResponse `json:"parts"`
}

// submitRequest accepts both the current field names and the ones older
// clients send.
type submitRequest struct {
	Text       *string `json:"text"`
	PartText   *string `json:"part_text"`
	Title      *string `json:"title"`
	StoryTitle *string `json:"story_title"`
}

func (r submitRequest) submission() services.PartSubmission {
	var in services.PartSubmission
	switch {
	case r.Text != nil:
		in.Text = *r.Text
	case r.PartText != nil:
		in.Text = *r.PartText
	}
	if r.Title != nil {
		in.Title = r.Title
	} else {
		in.Title = r.StoryTitle
	}
	return in
}

type refreshCredentialRequest struct {
	RefreshCredential string `json:"refresh_credential" binding:"required"`
}

func newPartResponse(p *models.Part, story *models.Story) partResponse {
	out := partResponse{
		ID:           p.ID,
		Number:       p.PartNumber,
		Text:         p.PartText,
		DateStarted:  p.DateStarted,
		DateComplete: p.DateComplete,
	}
	if story != nil {
		out.Story = &storyRef{ID: story.ID, Title: story.Title}
	}
	return out
}

func newStoryResponse(s *models.StoryWithParts) storyResponse {
	out := storyResponse{
		ID:           s.ID,
		Title:        s.Title,
		DateCreated:  s.DateCreated,
		DateComplete: s.DateComplete,
		Parts:        make([]partResponse, 0, len(s.Parts)),
	}
	for i := range s.Parts {
		out.Parts = append(out.Parts, newPartResponse(&s.Parts[i], nil))
	}
	return out
}

// --- handlers ---

func (h *Handler) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Welcome!",
		"user_id":   userID(c),
		"user_name": c.GetString(userNameContextKey),
	})
}

func (h *Handler) nextPart(c *gin.Context) {
	ctx := c.Request.Context()

	part, err := h.assigner.NextPart(ctx, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	story, err := h.stories.Story(ctx, part.StoryID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPartResponse(part, story))
}

func (h *Handler) previousPart(c *gin.Context) {
	part, err := h.stories.PreviousPart(c.Request.Context(), userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPartResponse(part, nil))
}

func (h *Handler) completePart(c *gin.Context) {
	h.submit(c, h.completer.CompletePart)
}

func (h *Handler) savePart(c *gin.Context) {
	h.submit(c, h.completer.SavePart)
}

type submitFunc func(ctx context.Context, userID, partID string, in services.PartSubmission) (*services.SubmitResult, error)

func (h *Handler) submit(c *gin.Context, fn submitFunc) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	res, err := fn(c.Request.Context(), userID(c), c.Param("id"), req.submission())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if !res.Accepted() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, res)
}

func (h *Handler) releasePart(c *gin.Context) {
	if err := h.completer.ReleasePart(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) myStories(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}
	size, err := queryInt(c, "size")
	if err != nil {
		badRequest(c, "size must be a number")
		return
	}

	res, err := h.stories.MyStories(c.Request.Context(), userID(c), pagination.Request{Page: page, Size: size})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	items := make([]storyResponse, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, newStoryResponse(&res.Items[i]))
	}
	c.JSON(http.StatusOK, pagination.Page[storyResponse]{
		Items: items,
		Total: res.Total,
		Page:  res.Page,
		Size:  res.Size,
		Pages: res.Pages,
	})
}

func (h *Handler) randomCompleteStory(c *gin.Context) {
	story, err := h.stories.RandomCompleteStory(c.Request.Context())
	if errors.Is(err, common.ErrorNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStoryResponse(story))
}

func (h *Handler) storeRefreshCredential(c *gin.Context) {
	var req refreshCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_credential is required")
		return
	}
	if err := h.users.StoreRefreshCredential(c.Request.Context(), userID(c), req.RefreshCredential); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
