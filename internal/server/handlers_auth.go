package server

import (
	"net/http"

	"fitroom/internal/auth"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  auth.PublicUser `json:"user"`
	Token string          `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	u, err := s.auth.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusCreated, map[string]any{
		"message": "Account created successfully",
		"user":    u,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	u, token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, loginResponse{User: u, Token: token})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	if err := s.auth.RequestReset(req.Email); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{
		"message": "If an account with that email exists, a password reset link has been sent",
	})
}

// Tokens are stateless; logging out is the client discarding its token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	u, err := s.auth.User(claims.UserID)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, u)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	u, err := s.auth.User(claims.UserID)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	if err := s.auth.UpdatePassword(u.Email, req.Password); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}
