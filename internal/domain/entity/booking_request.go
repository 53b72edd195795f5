package entity

// BookingRequest is the cleaning request a conversation belongs to.
// Only the fields the chat needs are mapped.
type BookingRequest struct {
	ID            string `json:"id" firestore:"-"`
	UserID        string `json:"user_id" firestore:"userId"`
	CustomerName  string `json:"customer_name" firestore:"customerName"`
	CustomerEmail string `json:"customer_email" firestore:"customerEmail"`
}
