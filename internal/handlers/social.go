package handlers

import (
	"net/http"

	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/services"
)

// SocialHandler serves follows, comments and votes.
type SocialHandler struct {
	follows *services.FollowService
	posts   *services.PostService
}

func NewSocialHandler(follows *services.FollowService, posts *services.PostService) *SocialHandler {
	return &SocialHandler{follows: follows, posts: posts}
}

// Follow handles PUT /api/users/{id}/follow. Repeating it is harmless.
func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	targetID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	created, err := h.follows.Follow(r.Context(), actor, targetID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, models.FollowResponse{UserID: targetID, Following: true})
}

// Unfollow handles DELETE /api/users/{id}/follow.
func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	targetID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.follows.Unfollow(r.Context(), actor, targetID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FollowResponse{UserID: targetID, Following: false})
}

func (h *SocialHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req models.CreateCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.posts.Comment(r.Context(), actor, postID, req.Content, req.ParentID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *SocialHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	tree, err := h.posts.Comments(r.Context(), postID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *SocialHandler) Vote(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	postID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req models.VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.posts.Vote(r.Context(), actor, postID, req.VoteType); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VoteResponse{PostID: postID, VoteType: req.VoteType})
}
