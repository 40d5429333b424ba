package interfaces

// Connection represents one admitted real-time client
// ARCHITECTURAL DISCOVERY: Pure abstraction without transport details
// lets the coordinator be exercised with in-memory fakes
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe)
	// FUNCTIONAL DISCOVERY: every implementation serializes writes through a single writer
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources
	Close() error

	// GetParticipantID returns the identity recovered from the credential
	GetParticipantID() string

	// GetPollID returns the poll this connection is bound to
	GetPollID() string

	// GetName returns the display name carried by the credential
	GetName() string

	// IsAuthenticated returns true once a verified credential is bound
	IsAuthenticated() bool
}
