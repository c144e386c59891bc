package planet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// ItemTypePSScene is the catalog item type this tool orders.
const ItemTypePSScene = "PSScene"

// SearchQuery describes one catalog search.
type SearchQuery struct {
	Geometry        geom.Geometry
	Start           time.Time // inclusive, date precision
	End             time.Time // inclusive, date precision
	CloudCoverMax   float64   // fraction in [0,1]
	AssetType       string    // search-time asset id, optional
	QualityCategory string    // e.g. "standard", optional
}

// Scene is one catalog search result.
type Scene struct {
	ID         string
	Acquired   time.Time
	Footprint  geom.Geometry
	CloudCover float64
	Thumbnail  string
}

// OrderRequest is a scene (clip) order.
type OrderRequest struct {
	Name          string
	ItemIDs       []string
	ProductBundle string // order-time bundle id
	Clip          geom.Geometry
}

// MosaicOrderRequest is a composite/basemap order.
type MosaicOrderRequest struct {
	Name       string
	MosaicName string
	Geometry   geom.Geometry
}

// Artifact is one deliverable of a completed order.
type Artifact struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Length   int64  `json:"length"`
}

// OrderStatus is the state of a submitted order. Raw retains the full
// status document for metadata persistence.
type OrderStatus struct {
	ID         string
	State      string
	SourceType string
	Artifacts  []Artifact
	Raw        json.RawMessage
}

// Order states reported by the orders endpoint.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateSuccess = "success"
	StateFailed  = "failed"
)

// Pending reports whether the order still needs a later re-poll.
func (s *OrderStatus) Pending() bool {
	return s.State != StateSuccess && s.State != StateFailed
}

// Mosaic is one basemap series entry.
type Mosaic struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FirstAcquired string `json:"first_acquired"`
	LastAcquired  string `json:"last_acquired"`
}

// SearchError is a non-success catalog search response.
type SearchError struct {
	StatusCode int
	Body       string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("catalog search failed: status %d: %s", e.StatusCode, e.Body)
}

// OrderError is a non-accepted order submission response.
type OrderError struct {
	StatusCode int
	Body       string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order submission failed: status %d: %s", e.StatusCode, e.Body)
}

// Wire structures for the quick-search filter tree. The filter payload
// travels only on the first page request.

type searchRequest struct {
	ItemTypes []string  `json:"item_types"`
	Filter    andFilter `json:"filter"`
}

type andFilter struct {
	Type   string `json:"type"`
	Config []any  `json:"config"`
}

type fieldFilter struct {
	Type      string `json:"type"`
	FieldName string `json:"field_name"`
	Config    any    `json:"config"`
}

type listFilter struct {
	Type   string   `json:"type"`
	Config []string `json:"config"`
}

type dateRangeConfig struct {
	GTE string `json:"gte"`
	LTE string `json:"lte"`
}

type rangeConfig struct {
	LTE float64 `json:"lte"`
}

type sceneProperties struct {
	Acquired        string  `json:"acquired"`
	CloudCover      float64 `json:"cloud_cover"`
	QualityCategory string  `json:"quality_category"`
}

type sceneFeature struct {
	ID         string          `json:"id"`
	Geometry   geom.Geometry   `json:"geometry"`
	Properties sceneProperties `json:"properties"`
	Links      struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"_links"`
}

type searchPage struct {
	Features []sceneFeature `json:"features"`
	Links    struct {
		Next string `json:"_next"`
	} `json:"_links"`
}

// Wire structures for the orders endpoint.

type orderProduct struct {
	ItemIDs       []string       `json:"item_ids,omitempty"`
	ItemType      string         `json:"item_type,omitempty"`
	ProductBundle string         `json:"product_bundle,omitempty"`
	MosaicName    string         `json:"mosaic_name,omitempty"`
	Geometry      *geom.Geometry `json:"geometry,omitempty"`
}

type orderTool struct {
	Clip *clipTool `json:"clip,omitempty"`
}

type clipTool struct {
	AOI *geom.Geometry `json:"aoi,omitempty"`
}

type orderPayload struct {
	Name       string         `json:"name"`
	SourceType string         `json:"source_type,omitempty"`
	Products   []orderProduct `json:"products"`
	Tools      []orderTool    `json:"tools,omitempty"`
}

type orderResponse struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	SourceType string `json:"source_type"`
	Links      struct {
		Results []Artifact `json:"results"`
	} `json:"_links"`
}

type mosaicsPage struct {
	Mosaics []Mosaic `json:"mosaics"`
	Links   struct {
		Next string `json:"_next"`
	} `json:"_links"`
}
