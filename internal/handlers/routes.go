package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	guard := SessionGuard{Verifier: deps.Verifier}

	health := HealthHandler{}
	auth := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Media: deps.Media, Limiter: deps.AuthLimiter}
	users := UserHandler{Accounts: deps.Accounts, Media: deps.Media}
	channels := ChannelHandler{
		Profiles:      deps.Profiles,
		Directory:     deps.Directory,
		Subscriptions: deps.Subscriptions,
		History:       deps.History,
		ProfileCache:  deps.ProfileCache,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/register", auth.Register)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", guard.Require(auth.Logout))
	mux.HandleFunc("/api/v1/auth/change-password", guard.Require(auth.ChangePassword))
	mux.HandleFunc("/api/v1/users/me", guard.Require(users.Me))
	mux.HandleFunc("/api/v1/users/me/avatar", guard.Require(users.UpdateAvatar))
	mux.HandleFunc("/api/v1/users/me/cover", guard.Require(users.UpdateCover))
	mux.HandleFunc("/api/v1/users/me/history", guard.Require(channels.WatchHistory))
	mux.HandleFunc("/api/v1/channels/{handle}", guard.Optional(channels.Profile))
	mux.HandleFunc("/api/v1/channels/{handle}/subscription", guard.Require(channels.Subscription))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts      AccountService
	Sessions      SessionService
	Verifier      AccessVerifier
	Profiles      ProfileSource
	ProfileCache  ProfileInvalidator
	Directory     ChannelDirectory
	Subscriptions SubscriptionStore
	History       HistorySource
	Media         MediaStore
	AuthLimiter   RateLimiter
}
