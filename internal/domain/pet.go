package domain

// Pet is the read-only view of a pet listed for adoption, as needed to build
// a matching request.
type Pet struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Species     string `json:"species"`
	Age         int    `json:"age"`
	Color       string `json:"color"`
	Sex         string `json:"sex"`
	Description string `json:"description"`
	Location    string `json:"location"`
	OwnerID     int64  `json:"ownerId"`
}
