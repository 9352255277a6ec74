package domain

// Service discovery protocol types for frame-based queries.
const (
	ServiceTypeAll         = 0
	ServiceTypeBonjour     = 1
	ServiceTypeUPnP        = 2
	ServiceTypeWsDiscovery = 3
	ServiceTypeVendor      = 255
)

// Frame-based transaction ids occupy one octet and zero is reserved,
// so ids wrap within 1..255.
const (
	MinServiceTransactionID = 1
	MaxServiceTransactionID = 255
)

// ServiceRequest is one client's outstanding frame-based query. The
// TransactionID demultiplexes responses back to the owner; the Query is
// the raw TLV payload handed to the driver as part of the aggregate.
type ServiceRequest struct {
	ClientID      string `json:"client_id"`
	TransactionID uint8  `json:"transaction_id"`
	Protocol      int    `json:"protocol"`
	Query         []byte `json:"query"`
	// PeerAddress narrows the query to one peer, empty for broadcast.
	PeerAddress string `json:"peer_address,omitempty"`
}

// ServiceResponse is one TLV from a peer's service response frame.
type ServiceResponse struct {
	Protocol      int    `json:"protocol"`
	TransactionID uint8  `json:"transaction_id"`
	Status        int    `json:"status"`
	Data          []byte `json:"data"`
}

// LocalService is a client's registered frame-based advertisement,
// served by the driver when peers query us.
type LocalService struct {
	ClientID string `json:"client_id"`
	Protocol int    `json:"protocol"`
	// Entries are the driver-format service entry strings, one per
	// advertised record.
	Entries []string `json:"entries"`
}

// UsdConfig describes a session-based (unsynchronized) service discovery
// subscription or advertisement.
type UsdConfig struct {
	ServiceName string `json:"service_name"`
	Protocol    int    `json:"protocol"`
	ServiceInfo []byte `json:"service_info,omitempty"`
	// Frequency pins single-channel operation; FrequencyList widens a
	// subscription to multiple channels.
	Frequency     int   `json:"frequency,omitempty"`
	FrequencyList []int `json:"frequency_list,omitempty"`
}

// UsdSessionKind separates subscriber and publisher sessions, whose ids
// come from independent driver namespaces.
type UsdSessionKind int

const (
	UsdDiscovery UsdSessionKind = iota
	UsdAdvertisement
)

func (k UsdSessionKind) String() string {
	if k == UsdAdvertisement {
		return "advertisement"
	}
	return "discovery"
}

// UsdSession tracks one live session-based operation and its owner.
type UsdSession struct {
	ClientID  string         `json:"client_id"`
	SessionID int            `json:"session_id"`
	Kind      UsdSessionKind `json:"kind"`
	Config    UsdConfig      `json:"config"`
}
