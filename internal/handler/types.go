package handler

type RefreshRequest struct {
	ID string `json:"id,omitempty"`
}

type APIResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RedirectResponse struct {
	Redirect string `json:"redirect"`
}
