package main

import (
	"sanitrack/internal/models"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AssignRequest struct {
	WorkerID string `json:"worker_id"`
}

type WorkerStatusRequest struct {
	Status models.WorkerStatus `json:"status"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

type UserResponse struct {
	User any `json:"user"`
}
