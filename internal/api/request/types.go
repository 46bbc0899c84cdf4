package request

// AddPlayerRequest is the request body for tracking a player by name
type AddPlayerRequest struct {
	Name string `json:"name"`
}
