package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/models"
)

// ChannelHandler serves public channel profiles and the subscription edge
// endpoints.
type ChannelHandler struct {
	Profiles      ProfileSource
	Directory     ChannelDirectory
	Subscriptions SubscriptionStore
	History       HistorySource
	ProfileCache  ProfileInvalidator
}

// Profile handles GET /api/v1/channels/{handle} requests. The viewer identity
// is optional; anonymous requests always see isSubscribed=false.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	viewerID, _ := CurrentUserID(ctx)

	profile, err := h.Profiles.ChannelProfile(ctx, viewerID, r.PathValue("handle"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, "channel profile fetched successfully", map[string]any{"channel": profile})
}

// Subscription handles POST and DELETE /api/v1/channels/{handle}/subscription.
// Both directions are idempotent: repeating a subscribe or unsubscribe leaves
// the edge set unchanged.
func (h ChannelHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.subscribe(w, r)
	case http.MethodDelete:
		h.unsubscribe(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h ChannelHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	channel, err := h.resolveChannel(w, r)
	if err != nil {
		return
	}
	if channel.ID == userID {
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "cannot subscribe to your own channel"})
		return
	}

	sub := models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: userID,
		ChannelID:    channel.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Subscriptions.Create(ctx, sub); err != nil {
		respondError(ctx, w, err)
		return
	}
	h.refreshProfile(userID, channel.Handle)

	respondData(ctx, w, http.StatusOK, "subscribed successfully", nil)
}

func (h ChannelHandler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	channel, err := h.resolveChannel(w, r)
	if err != nil {
		return
	}

	if err := h.Subscriptions.Delete(ctx, userID, channel.ID); err != nil {
		respondError(ctx, w, err)
		return
	}
	h.refreshProfile(userID, channel.Handle)

	respondData(ctx, w, http.StatusOK, "unsubscribed successfully", nil)
}

// resolveChannel looks up the channel named in the path. Handles are stored
// lower-cased, so the path value is normalized first. On failure the response
// has already been written and the caller should return.
func (h ChannelHandler) resolveChannel(w http.ResponseWriter, r *http.Request) (models.User, error) {
	ctx := r.Context()

	handle := accounts.NormalizeHandle(r.PathValue("handle"))
	channel, err := h.Directory.FindByHandle(ctx, handle)
	if err != nil {
		respondError(ctx, w, err)
		return models.User{}, err
	}
	return channel, nil
}

// refreshProfile drops the viewer's cached profile so the next read reflects
// the edge change immediately instead of after the cache TTL.
func (h ChannelHandler) refreshProfile(viewerID, handle string) {
	if h.ProfileCache == nil {
		return
	}
	h.ProfileCache.Invalidate(viewerID, handle)
}

// WatchHistory handles GET /api/v1/users/me/history requests.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	entries, err := h.History.WatchHistory(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, "watch history fetched successfully", map[string]any{"history": entries})
}
