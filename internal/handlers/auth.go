package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/sessions"
)

var (
	sessionStore = sessions.NewCookieStore([]byte(sessionSecret()))
	sessionName  = "pwa-notify-session"
)

func sessionSecret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "secret-key-change-in-production"
}

// LoginHandler checks phone/password against the in-memory demo users.
// Credentials are compared in plaintext; this server makes no pretense of
// real authentication.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	for i := range h.Users {
		user := &h.Users[i]
		if user.Phone == req.Phone && user.CheckPassword(req.Password) {
			session, _ := sessionStore.Get(r, sessionName)
			session.Values["user_phone"] = user.Phone
			session.Values["user_name"] = user.Name
			session.Save(r, w)

			loginAttempts.WithLabelValues("success").Inc()
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"user": map[string]string{
					"phone": user.Phone,
					"name":  user.Name,
				},
				"message": "Login successful",
			})
			return
		}
	}

	loginAttempts.WithLabelValues("failure").Inc()
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": "Invalid credentials",
	})
}

// LogoutHandler clears the session
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionStore.Get(r, sessionName)
	session.Values["user_phone"] = nil
	session.Options.MaxAge = -1
	session.Save(r, w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// AuthMiddleware checks if a user is logged in
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionStore.Get(r, sessionName)
		phone, ok := session.Values["user_phone"].(string)
		if !ok || phone == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// GetCurrentUser returns the logged-in user's phone and name from the session
func GetCurrentUser(r *http.Request) (string, string) {
	session, _ := sessionStore.Get(r, sessionName)
	phone, _ := session.Values["user_phone"].(string)
	name, _ := session.Values["user_name"].(string)
	return phone, name
}
